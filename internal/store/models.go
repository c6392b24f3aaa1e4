package store

import "time"

// MessageType classifies a ledger message. Only MessageTypeAudio is produced today.
type MessageType string

const (
	MessageTypeAudio MessageType = "audio"
	MessageTypeText  MessageType = "text"
)

type User struct {
	ID          int64   `json:"user_id"`
	Name        *string `json:"name"`                  // Nullable
	NotionToken *string `json:"-"`                     // Never exposed in JSON responses
	DatabaseID  *string `json:"database_id,omitempty"` // Nullable
}

type Message struct {
	ID          int64       `json:"message_id"`
	UserID      int64       `json:"user_id"`
	Date        time.Time   `json:"date"`
	Text        *string     `json:"text"` // Nulled on anonymization
	WordCount   int         `json:"word_count"`
	Type        MessageType `json:"message_type"`
	AudioLength float64     `json:"audio_length"` // Seconds
}
