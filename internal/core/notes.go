package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gwi.com/verbal-diary/internal/notion"
	"gwi.com/verbal-diary/internal/utils"
)

const noteChunkSize = 2000

// NoteClient is the subset of the Notion API the workflow uses.
type NoteClient interface {
	QueryDatabase(ctx context.Context, databaseID string) ([]notion.Page, error)
	CreatePage(ctx context.Context, databaseID, title string) (*notion.Page, error)
	AppendBlocks(ctx context.Context, pageID string, blocks []notion.Block) error
}

// NoteClientFactory builds a client bound to one user's integration token.
type NoteClientFactory func(token string) NoteClient

type NoteService struct {
	newClient NoteClientFactory
	loc       *time.Location
	logger    *slog.Logger
}

func NewNoteService(newClient NoteClientFactory, loc *time.Location, logger *slog.Logger) *NoteService {
	if loc == nil {
		loc = time.UTC
	}
	return &NoteService{newClient: newClient, loc: loc, logger: logger}
}

// PeriodLabel names the weekly page a note belongs to, e.g. "2024 Week 07".
// The year is the calendar year and the week is the ISO week, so 2024-12-30
// lands on "2024 Week 01" like the existing pages do.
func PeriodLabel(t time.Time) string {
	_, week := t.ISOWeek()
	return fmt.Sprintf("%d Week %02d", t.Year(), week)
}

// TranscriptionHeading is the heading placed above every appended transcript.
func TranscriptionHeading(t time.Time, model string) string {
	h := "Transcription from " + t.Format("02.01.2006 15:04 MST")
	if model != "" {
		h += " - " + model
	}
	return h
}

// ResolveDestination returns the id of the page titled title, creating it when
// no page in the database matches exactly.
func (s *NoteService) ResolveDestination(ctx context.Context, client NoteClient, databaseID, title string) (string, error) {
	pages, err := client.QueryDatabase(ctx, databaseID)
	if err != nil {
		return "", fmt.Errorf("querying database: %w", err)
	}
	for _, p := range pages {
		if p.Title == title {
			return p.ID, nil
		}
	}

	page, err := client.CreatePage(ctx, databaseID, title)
	if err != nil {
		return "", fmt.Errorf("creating page %q: %w", title, err)
	}
	s.logger.Info("notion page created", "title", title, "page_id", page.ID)
	return page.ID, nil
}

// AppendText adds a heading and the text, split into paragraph blocks, in a single call.
func (s *NoteService) AppendText(ctx context.Context, client NoteClient, pageID, heading, text string) error {
	blocks := []notion.Block{notion.Heading3(heading)}
	for _, chunk := range utils.ChunkString(text, noteChunkSize) {
		blocks = append(blocks, notion.Paragraph(chunk))
	}
	if err := client.AppendBlocks(ctx, pageID, blocks); err != nil {
		return fmt.Errorf("appending to page %s: %w", pageID, err)
	}
	return nil
}

// AppendTranscription runs the whole workflow for one transcript. Every failure
// comes back as *NoteServiceError.
func (s *NoteService) AppendTranscription(ctx context.Context, token, databaseID, text string, at time.Time, model string) error {
	if token == "" || databaseID == "" {
		return &NoteServiceError{Err: ErrNoNoteDestination}
	}

	local := at.In(s.loc)
	client := s.newClient(token)

	pageID, err := s.ResolveDestination(ctx, client, databaseID, PeriodLabel(local))
	if err != nil {
		return &NoteServiceError{Err: err}
	}
	if err := s.AppendText(ctx, client, pageID, TranscriptionHeading(local, model), text); err != nil {
		return &NoteServiceError{Err: err}
	}
	return nil
}
