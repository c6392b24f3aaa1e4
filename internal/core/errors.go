package core

import (
	"errors"
	"fmt"
)

// ErrNoNoteDestination means the user never registered a Notion token or database.
var ErrNoNoteDestination = errors.New("no Notion destination registered")

// TranscriptionError is returned when a provider exhausted its retries or
// answered with an error that is not worth retrying.
type TranscriptionError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *TranscriptionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("transcription via %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
	}
	return fmt.Sprintf("transcription via %s failed: %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// NoteServiceError wraps any failure of the note-append workflow.
type NoteServiceError struct {
	Err error
}

func (e *NoteServiceError) Error() string { return "note service: " + e.Err.Error() }
func (e *NoteServiceError) Unwrap() error { return e.Err }

// DownloadError wraps a failure to fetch the audio payload. It is never retried.
type DownloadError struct {
	FileID string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.FileID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
