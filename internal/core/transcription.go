package core

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Transcriber turns an audio payload into text. Implementations live in internal/speech.
type Transcriber interface {
	Transcribe(ctx context.Context, file AudioFile) (string, error)
	Name() string
	Model() string
}

type Transcription struct {
	Text  string
	Model string
}

// TranscriptionGateway normalizes provider output for the intake workflow.
type TranscriptionGateway struct {
	provider Transcriber
	logger   *slog.Logger
}

func NewTranscriptionGateway(provider Transcriber, logger *slog.Logger) *TranscriptionGateway {
	return &TranscriptionGateway{provider: provider, logger: logger}
}

// Transcribe never returns an empty transcript; errors are always *TranscriptionError.
func (g *TranscriptionGateway) Transcribe(ctx context.Context, file AudioFile) (Transcription, error) {
	start := time.Now()
	text, err := g.provider.Transcribe(ctx, file)
	if err != nil {
		var terr *TranscriptionError
		if !errors.As(err, &terr) {
			terr = &TranscriptionError{Provider: g.provider.Name(), Err: err}
		}
		g.logger.Error("transcription failed", "provider", g.provider.Name(), "path", file.Path, "error", err)
		return Transcription{}, terr
	}

	if text == "" {
		text = " "
	}
	g.logger.Info("transcription done",
		"provider", g.provider.Name(),
		"path", file.Path,
		"chars", len(text),
		"elapsed", time.Since(start))
	return Transcription{Text: text, Model: g.provider.Model()}, nil
}
