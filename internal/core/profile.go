package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gwi.com/verbal-diary/internal/store"
)

// Ledger is the persistence the profile layer needs. *store.SQLiteStore satisfies it.
type Ledger interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	UpdateUser(ctx context.Context, user store.User) error
	DeleteUser(ctx context.Context, userID int64) error
	AnonymizeUser(ctx context.Context, userID int64) (int64, error)
	GetAllUsers(ctx context.Context) ([]store.User, error)
	InsertMessage(ctx context.Context, msg store.Message) (int64, error)
	GetMessagesByUser(ctx context.Context, userID int64) ([]store.Message, error)
}

// ProfileFields carries the optional attributes supplied on contact. Nil means "not supplied".
type ProfileFields struct {
	Name        *string
	NotionToken *string
	DatabaseID  *string
}

type ProfileService struct {
	ledger Ledger
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewProfileService(ledger Ledger, loc *time.Location, logger *slog.Logger) *ProfileService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProfileService{ledger: ledger, loc: loc, now: time.Now, logger: logger}
}

// UserProfile is a handle on one ledger user. It holds no authoritative state;
// every statistics or token call goes back to the store.
type UserProfile struct {
	ID  int64
	svc *ProfileService
}

// LoadProfile creates the user if absent, otherwise merges every supplied field
// that differs from the stored value and writes them back in one update.
func (s *ProfileService) LoadProfile(ctx context.Context, userID int64, fields ProfileFields) (*UserProfile, error) {
	exists, err := s.ledger.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("checking user %d: %w", userID, err)
	}

	if !exists {
		err = s.ledger.CreateUser(ctx, store.User{
			ID:          userID,
			Name:        fields.Name,
			NotionToken: fields.NotionToken,
			DatabaseID:  fields.DatabaseID,
		})
		if err == nil {
			s.logger.Info("user created", "user_id", userID)
			return &UserProfile{ID: userID, svc: s}, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("creating user %d: %w", userID, err)
		}
		// Another event created the row in between; fall through to the merge.
	}

	user, err := s.ledger.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}

	changed := mergeField(&user.Name, fields.Name)
	changed = mergeField(&user.NotionToken, fields.NotionToken) || changed
	changed = mergeField(&user.DatabaseID, fields.DatabaseID) || changed
	if changed {
		if err := s.ledger.UpdateUser(ctx, *user); err != nil {
			return nil, fmt.Errorf("updating user %d: %w", userID, err)
		}
		s.logger.Info("user updated", "user_id", userID)
	}
	return &UserProfile{ID: userID, svc: s}, nil
}

func mergeField(dst **string, src *string) bool {
	if src == nil {
		return false
	}
	if *dst != nil && **dst == *src {
		return false
	}
	v := *src
	*dst = &v
	return true
}

// Anonymize detaches the user's history from their identity. The surrogate id is returned.
func (s *ProfileService) Anonymize(ctx context.Context, userID int64) (int64, error) {
	surrogate, err := s.ledger.AnonymizeUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("anonymizing user %d: %w", userID, err)
	}
	s.logger.Info("user anonymized", "user_id", userID, "surrogate_id", surrogate)
	return surrogate, nil
}

func (s *ProfileService) Delete(ctx context.Context, userID int64) error {
	if err := s.ledger.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting user %d: %w", userID, err)
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

func (s *ProfileService) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.ledger.GetAllUsers(ctx)
}

func (s *ProfileService) GetUser(ctx context.Context, userID int64) (*store.User, error) {
	return s.ledger.GetUser(ctx, userID)
}

// Profile returns a handle for an existing user without touching their fields.
func (s *ProfileService) Profile(ctx context.Context, userID int64) (*UserProfile, error) {
	if _, err := s.ledger.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return &UserProfile{ID: userID, svc: s}, nil
}

// AddMessage appends one ledger message. A nil date means now in the reference timezone.
func (p *UserProfile) AddMessage(ctx context.Context, text string, wordCount int, msgType store.MessageType, audioLength float64, date *time.Time) (int64, error) {
	at := p.svc.now().In(p.svc.loc)
	if date != nil {
		at = *date
	}
	id, err := p.svc.ledger.InsertMessage(ctx, store.Message{
		UserID:      p.ID,
		Date:        at,
		Text:        &text,
		WordCount:   wordCount,
		Type:        msgType,
		AudioLength: audioLength,
	})
	if err != nil {
		return 0, fmt.Errorf("adding message for user %d: %w", p.ID, err)
	}
	return id, nil
}

func (p *UserProfile) Messages(ctx context.Context) ([]store.Message, error) {
	return p.svc.ledger.GetMessagesByUser(ctx, p.ID)
}

// LastOnline is the date of the latest message, or now when there is none.
func (p *UserProfile) LastOnline(ctx context.Context) (time.Time, error) {
	msgs, err := p.Messages(ctx)
	if err != nil {
		return time.Time{}, err
	}
	_, last := p.onlineSpan(msgs)
	return last, nil
}

// FirstOnline is the date of the earliest message, or now when there is none.
func (p *UserProfile) FirstOnline(ctx context.Context) (time.Time, error) {
	msgs, err := p.Messages(ctx)
	if err != nil {
		return time.Time{}, err
	}
	first, _ := p.onlineSpan(msgs)
	return first, nil
}

// onlineSpan returns the first and last message dates, both now when msgs is empty.
func (p *UserProfile) onlineSpan(msgs []store.Message) (time.Time, time.Time) {
	if len(msgs) == 0 {
		now := p.svc.now().In(p.svc.loc)
		return now, now
	}
	return msgs[0].Date, msgs[len(msgs)-1].Date
}

func (p *UserProfile) NotionToken(ctx context.Context) (*string, error) {
	user, err := p.svc.ledger.GetUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return user.NotionToken, nil
}

func (p *UserProfile) DatabaseID(ctx context.Context) (*string, error) {
	user, err := p.svc.ledger.GetUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return user.DatabaseID, nil
}

const reportRule = "=============================="

// UserInfo renders the usage report shown to the user.
func (p *UserProfile) UserInfo(ctx context.Context) (string, error) {
	user, err := p.svc.ledger.GetUser(ctx, p.ID)
	if err != nil {
		return "", err
	}
	msgs, err := p.Messages(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(reportRule + "\n")
	b.WriteString("USER STATISTICS\n")
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "User ID: %d\n", user.ID)
	fmt.Fprintf(&b, "Name: %s\n", orDash(user.Name))
	fmt.Fprintf(&b, "Notion database: %s\n", orDash(user.DatabaseID))

	first, last := p.onlineSpan(msgs)
	fmt.Fprintf(&b, "First seen: %s\n", store.FormatDate(first))
	fmt.Fprintf(&b, "Last seen: %s\n", store.FormatDate(last))

	if len(msgs) == 0 {
		b.WriteString("No messages yet.\n")
		b.WriteString(reportRule)
		return b.String(), nil
	}

	var words int
	var seconds float64
	for _, m := range msgs {
		words += m.WordCount
		seconds += m.AudioLength
	}
	n := float64(len(msgs))

	b.WriteString("------------------------------\n")
	fmt.Fprintf(&b, "Messages: %d\n", len(msgs))
	fmt.Fprintf(&b, "Average words per message: %.2f\n", float64(words)/n)
	fmt.Fprintf(&b, "Total words: %d\n", words)
	fmt.Fprintf(&b, "Average audio length: %.2f s (%.2f min)\n", seconds/n, seconds/n/60)
	fmt.Fprintf(&b, "Total audio length: %.2f s (%.2f min)\n", seconds, seconds/60)
	b.WriteString(reportRule)
	return b.String(), nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
