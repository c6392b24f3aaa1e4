package core

import "time"

// AudioKind distinguishes the two ways audio reaches the bot. It is a closed set:
// AudioKindAudio (an uploaded audio file with its own MIME type) or AudioKindVoice.
type AudioKind interface {
	Suffix() string
	MIMEType() string
	String() string
	isAudioKind()
}

// AudioKindAudio is an audio file sent as a document-like attachment.
type AudioKindAudio struct {
	MIME string
}

func (a AudioKindAudio) Suffix() string { return ".m4a" }
func (a AudioKindAudio) String() string { return "audio" }
func (AudioKindAudio) isAudioKind()     {}

func (a AudioKindAudio) MIMEType() string {
	if a.MIME == "" {
		return "audio/mp4"
	}
	return a.MIME
}

// AudioKindVoice is a recorded voice message, always OGG/Opus.
type AudioKindVoice struct{}

func (AudioKindVoice) Suffix() string   { return ".ogg" }
func (AudioKindVoice) MIMEType() string { return "audio/ogg" }
func (AudioKindVoice) String() string   { return "voice" }
func (AudioKindVoice) isAudioKind()     {}

type AudioRef struct {
	FileID   string
	Duration float64 // Seconds
	Kind     AudioKind
}

// FileName is the content-addressed local name of the audio payload.
func (r AudioRef) FileName() string {
	return r.FileID + r.Kind.Suffix()
}

// AudioEvent is one inbound audio submission from the chat platform.
type AudioEvent struct {
	UserID    int64
	ChatID    int64
	Username  string
	Audio     AudioRef
	Timestamp time.Time
}

// AudioFile is a downloaded payload handed to a transcription provider.
type AudioFile struct {
	Path     string
	Data     []byte
	MIMEType string
}
