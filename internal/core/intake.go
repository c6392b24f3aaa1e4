package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gwi.com/verbal-diary/internal/store"
	"gwi.com/verbal-diary/internal/utils"
)

const (
	chatChunkSize = 4096

	MsgAudioReceived  = "✅ Audio message received and downloaded."
	MsgNotionAppended = "✅ Transcription appended to Notion."
)

// Downloader fetches an audio payload from the chat platform.
type Downloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// Messenger sends plain text to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// AudioArchive keeps the downloaded payload and its transcript sidecar.
type AudioArchive interface {
	SaveAudio(ctx context.Context, name string, data []byte) (string, error)
	SaveTranscript(ctx context.Context, name, text string) error
}

type IntakeState int

const (
	StateReceived IntakeState = iota
	StateDownloaded
	StateTranscribed
	StatePersisted
	StateNotified
	StateAppended
	StateDone
	StateErrored
)

func (s IntakeState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateDownloaded:
		return "downloaded"
	case StateTranscribed:
		return "transcribed"
	case StatePersisted:
		return "persisted"
	case StateNotified:
		return "notified"
	case StateAppended:
		return "appended"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type IntakeService struct {
	profiles        *ProfileService
	downloader      Downloader
	archive         AudioArchive
	transcriber     *TranscriptionGateway
	notes           *NoteService
	messenger       Messenger
	summaryInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

type IntakeDeps struct {
	Profiles        *ProfileService
	Downloader      Downloader
	Archive         AudioArchive
	Transcriber     *TranscriptionGateway
	Notes           *NoteService
	Messenger       Messenger
	SummaryInterval time.Duration
	Logger          *slog.Logger
}

func NewIntakeService(deps IntakeDeps) *IntakeService {
	interval := deps.SummaryInterval
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &IntakeService{
		profiles:        deps.Profiles,
		downloader:      deps.Downloader,
		archive:         deps.Archive,
		transcriber:     deps.Transcriber,
		notes:           deps.Notes,
		messenger:       deps.Messenger,
		summaryInterval: interval,
		now:             time.Now,
		logger:          deps.Logger,
	}
}

// Process runs one audio event through download, transcription, ledger write,
// chat relay and note append. The returned state is the last one reached.
// Steps already completed are never rolled back.
func (s *IntakeService) Process(ctx context.Context, ev AudioEvent) (IntakeState, error) {
	log := s.logger.With("user_id", ev.UserID, "chat_id", ev.ChatID, "file_id", ev.Audio.FileID, "kind", ev.Audio.Kind)
	state := StateReceived
	advance := func(next IntakeState) {
		log.Debug("intake state", "from", state, "to", next)
		state = next
	}

	var name *string
	if ev.Username != "" {
		name = &ev.Username
	}
	profile, err := s.profiles.LoadProfile(ctx, ev.UserID, ProfileFields{Name: name})
	if err != nil {
		return state, fmt.Errorf("loading profile: %w", err)
	}
	previousOnline, err := profile.LastOnline(ctx)
	if err != nil {
		return state, fmt.Errorf("reading last activity: %w", err)
	}

	data, err := s.downloader.Download(ctx, ev.Audio.FileID)
	if err != nil {
		return state, &DownloadError{FileID: ev.Audio.FileID, Err: err}
	}
	path, err := s.archive.SaveAudio(ctx, ev.Audio.FileName(), data)
	if err != nil {
		return state, &DownloadError{FileID: ev.Audio.FileID, Err: err}
	}
	advance(StateDownloaded)
	s.send(ctx, log, ev.ChatID, MsgAudioReceived)

	result, err := s.transcriber.Transcribe(ctx, AudioFile{Path: path, Data: data, MIMEType: ev.Audio.Kind.MIMEType()})
	if err != nil {
		advance(StateErrored)
		s.send(ctx, log, ev.ChatID, "Error: "+err.Error())
		return state, err
	}
	advance(StateTranscribed)

	at := ev.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	if _, err := profile.AddMessage(ctx, result.Text, len(strings.Fields(result.Text)), store.MessageTypeAudio, ev.Audio.Duration, &at); err != nil {
		return state, fmt.Errorf("persisting transcript: %w", err)
	}
	if err := s.archive.SaveTranscript(ctx, ev.Audio.FileID+".txt", result.Text); err != nil {
		log.Warn("failed to write transcript sidecar", "error", err)
	}
	advance(StatePersisted)

	for _, chunk := range utils.ChunkString(result.Text, chatChunkSize) {
		if err := s.messenger.SendMessage(ctx, ev.ChatID, chunk); err != nil {
			return state, fmt.Errorf("relaying transcript: %w", err)
		}
	}
	advance(StateNotified)

	if err := s.appendNote(ctx, profile, result, at); err != nil {
		advance(StateErrored)
		s.send(ctx, log, ev.ChatID, "Notion Error: "+noteErrorDetail(err))
		return state, err
	}
	advance(StateAppended)
	s.send(ctx, log, ev.ChatID, MsgNotionAppended)

	if s.now().Sub(previousOnline) > s.summaryInterval {
		info, err := profile.UserInfo(ctx)
		if err != nil {
			log.Warn("failed to build usage summary", "error", err)
		} else {
			s.send(ctx, log, ev.ChatID, info)
		}
	}
	advance(StateDone)
	log.Info("audio message processed", "words", len(strings.Fields(result.Text)), "duration", ev.Audio.Duration)
	return state, nil
}

func (s *IntakeService) appendNote(ctx context.Context, profile *UserProfile, result Transcription, at time.Time) error {
	token, err := profile.NotionToken(ctx)
	if err != nil {
		return &NoteServiceError{Err: err}
	}
	databaseID, err := profile.DatabaseID(ctx)
	if err != nil {
		return &NoteServiceError{Err: err}
	}
	if token == nil || databaseID == nil {
		return &NoteServiceError{Err: ErrNoNoteDestination}
	}
	return s.notes.AppendTranscription(ctx, *token, *databaseID, result.Text, at, result.Model)
}

func noteErrorDetail(err error) string {
	var nerr *NoteServiceError
	if errors.As(err, &nerr) {
		if errors.Is(nerr.Err, ErrNoNoteDestination) {
			return "no Notion destination registered, use /register to add one"
		}
		return nerr.Err.Error()
	}
	return err.Error()
}

func (s *IntakeService) send(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := s.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Warn("failed to send message", "error", err)
	}
}
