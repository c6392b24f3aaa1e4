package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type RegistrationStep string

const (
	StepAwaitConsent  RegistrationStep = "await_consent"
	StepAwaitToken    RegistrationStep = "await_token"
	StepAwaitDatabase RegistrationStep = "await_database"
)

// RegistrationSession is the per-conversation state of an unfinished /register.
type RegistrationSession struct {
	ChatID      int64            `json:"chat_id"`
	UserID      int64            `json:"user_id"`
	Username    string           `json:"username,omitempty"`
	Step        RegistrationStep `json:"step"`
	NotionToken string           `json:"notion_token,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ErrNoSession is returned by a SessionStore when the chat has no open session.
var ErrNoSession = errors.New("no registration session")

type SessionStore interface {
	Get(ctx context.Context, chatID int64) (*RegistrationSession, error)
	Save(ctx context.Context, session *RegistrationSession) error
	Delete(ctx context.Context, chatID int64) error
}

const (
	MsgRegisterConsent = "To append your transcriptions to Notion I need to store your Notion integration token " +
		"and database id. Do you agree? (yes/no)"
	MsgRegisterAskToken    = "Please send your Notion integration token."
	MsgRegisterAskDatabase = "Thanks. Now send the id of the Notion database your notes should go to."
	MsgRegisterDone        = "✅ Registration complete. New transcriptions will be appended to Notion."
	MsgRegisterCancelled   = "Registration cancelled."
	MsgRegisterAnswer      = "Please answer yes or no."
	MsgRegisterEmpty       = "That was empty, please try again."
)

type RegistrationService struct {
	sessions SessionStore
	profiles *ProfileService
	now      func() time.Time
	logger   *slog.Logger
}

func NewRegistrationService(sessions SessionStore, profiles *ProfileService, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{sessions: sessions, profiles: profiles, now: time.Now, logger: logger}
}

// Start opens (or restarts) a session and returns the consent question.
func (r *RegistrationService) Start(ctx context.Context, chatID, userID int64, username string) (string, error) {
	err := r.sessions.Save(ctx, &RegistrationSession{
		ChatID:    chatID,
		UserID:    userID,
		Username:  username,
		Step:      StepAwaitConsent,
		UpdatedAt: r.now(),
	})
	if err != nil {
		return "", fmt.Errorf("saving registration session: %w", err)
	}
	return MsgRegisterConsent, nil
}

// Cancel drops any open session. It reports whether one existed.
func (r *RegistrationService) Cancel(ctx context.Context, chatID int64) (bool, error) {
	if _, err := r.sessions.Get(ctx, chatID); err != nil {
		if errors.Is(err, ErrNoSession) {
			return false, nil
		}
		return false, err
	}
	if err := r.sessions.Delete(ctx, chatID); err != nil {
		return false, fmt.Errorf("deleting registration session: %w", err)
	}
	return true, nil
}

// HandleReply advances an open session with the user's text. handled is false
// when the chat has no session, so the caller can treat the text as ordinary input.
func (r *RegistrationService) HandleReply(ctx context.Context, chatID int64, text string) (reply string, handled bool, err error) {
	session, err := r.sessions.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("loading registration session: %w", err)
	}

	text = strings.TrimSpace(text)
	switch session.Step {
	case StepAwaitConsent:
		switch strings.ToLower(text) {
		case "yes", "y":
			session.Step = StepAwaitToken
			reply = MsgRegisterAskToken
		case "no", "n":
			if err := r.sessions.Delete(ctx, chatID); err != nil {
				return "", true, err
			}
			return MsgRegisterCancelled, true, nil
		default:
			return MsgRegisterAnswer, true, nil
		}

	case StepAwaitToken:
		if text == "" {
			return MsgRegisterEmpty, true, nil
		}
		session.NotionToken = text
		session.Step = StepAwaitDatabase
		reply = MsgRegisterAskDatabase

	case StepAwaitDatabase:
		if text == "" {
			return MsgRegisterEmpty, true, nil
		}
		fields := ProfileFields{NotionToken: &session.NotionToken, DatabaseID: &text}
		if session.Username != "" {
			fields.Name = &session.Username
		}
		if _, err := r.profiles.LoadProfile(ctx, session.UserID, fields); err != nil {
			return "", true, fmt.Errorf("storing registration: %w", err)
		}
		if err := r.sessions.Delete(ctx, chatID); err != nil {
			return "", true, err
		}
		r.logger.Info("registration complete", "user_id", session.UserID, "database_id", text)
		return MsgRegisterDone, true, nil

	default:
		_ = r.sessions.Delete(ctx, chatID)
		return "", true, fmt.Errorf("unknown registration step %q", session.Step)
	}

	session.UpdatedAt = r.now()
	if err := r.sessions.Save(ctx, session); err != nil {
		return "", true, fmt.Errorf("saving registration session: %w", err)
	}
	return reply, true, nil
}
