package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gwi.com/verbal-diary/internal/logging"
	"gwi.com/verbal-diary/internal/notion"
	"gwi.com/verbal-diary/internal/store"
)

var berlin = time.FixedZone("CET", 3600)

func strPtr(s string) *string { return &s }

func newLedger(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newProfiles(t *testing.T, ledger Ledger, now time.Time) *ProfileService {
	t.Helper()
	svc := NewProfileService(ledger, berlin, logging.Discard())
	svc.now = func() time.Time { return now }
	return svc
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ AudioFile) (string, error) {
	f.calls++
	return f.text, f.err
}
func (f *fakeTranscriber) Name() string  { return "fake" }
func (f *fakeTranscriber) Model() string { return "fake-model" }

type fakeDownloader struct {
	data []byte
	err  error
}

func (f *fakeDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeArchive struct {
	audio       map[string][]byte
	transcripts map[string]string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{audio: map[string][]byte{}, transcripts: map[string]string{}}
}

func (f *fakeArchive) SaveAudio(_ context.Context, name string, data []byte) (string, error) {
	f.audio[name] = data
	return "/audio/" + name, nil
}

func (f *fakeArchive) SaveTranscript(_ context.Context, name, text string) error {
	f.transcripts[name] = text
	return nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeNoteClient struct {
	pages    []notion.Page
	queryErr  error
	appendErr error
	created   []string
	appended map[string][]notion.Block
}

func newFakeNoteClient(pages ...notion.Page) *fakeNoteClient {
	return &fakeNoteClient{pages: pages, appended: map[string][]notion.Block{}}
}

func (f *fakeNoteClient) QueryDatabase(_ context.Context, _ string) ([]notion.Page, error) {
	return f.pages, f.queryErr
}

func (f *fakeNoteClient) CreatePage(_ context.Context, _ string, title string) (*notion.Page, error) {
	f.created = append(f.created, title)
	p := notion.Page{ID: "created-" + title, Title: title}
	f.pages = append(f.pages, p)
	return &p, nil
}

func (f *fakeNoteClient) AppendBlocks(_ context.Context, pageID string, blocks []notion.Block) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended[pageID] = append(f.appended[pageID], blocks...)
	return nil
}

type mapSessions struct {
	m map[int64]RegistrationSession
}

func newMapSessions() *mapSessions { return &mapSessions{m: map[int64]RegistrationSession{}} }

func (s *mapSessions) Get(_ context.Context, chatID int64) (*RegistrationSession, error) {
	sess, ok := s.m[chatID]
	if !ok {
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *mapSessions) Save(_ context.Context, sess *RegistrationSession) error {
	s.m[sess.ChatID] = *sess
	return nil
}

func (s *mapSessions) Delete(_ context.Context, chatID int64) error {
	delete(s.m, chatID)
	return nil
}

var errBoom = errors.New("boom")
