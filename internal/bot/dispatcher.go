package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/store"
	"gwi.com/verbal-diary/internal/telegram"
)

const (
	MsgStart         = "I'm your Verbal Diary Bot, please talk to me! Send a voice message and I will transcribe it. Use /register to connect Notion."
	MsgUnknown       = "Sorry, I didn't understand that command."
	MsgNotRegistered = "I don't know you yet. Send a voice message or use /register first."
	MsgDeregistered  = "Your data has been anonymized. Your statistics are kept without your identity."
	MsgDeleted       = "All of your data has been deleted."
	MsgNoRegistering = "There is no registration in progress."
	MsgNotAllowed    = "Sorry, this bot is private."
	msgInternalError = "Something went wrong, please try again later."
)

type AudioProcessor interface {
	Process(ctx context.Context, ev core.AudioEvent) (core.IntakeState, error)
}

// Dispatcher routes Telegram updates to the intake, registration and account commands.
type Dispatcher struct {
	messenger    core.Messenger
	intake       AudioProcessor
	registration *core.RegistrationService
	profiles     *core.ProfileService
	allowed      map[int64]struct{}
	logger       *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	queues map[int64][]telegram.Update // pending updates per chat; present while a worker runs
}

func NewDispatcher(messenger core.Messenger, intake AudioProcessor, registration *core.RegistrationService,
	profiles *core.ProfileService, allowedChats []int64, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		messenger:    messenger,
		intake:       intake,
		registration: registration,
		profiles:     profiles,
		logger:       logger,
		queues:       make(map[int64][]telegram.Update),
	}
	if len(allowedChats) > 0 {
		d.allowed = make(map[int64]struct{}, len(allowedChats))
		for _, id := range allowedChats {
			d.allowed[id] = struct{}{}
		}
	}
	return d
}

// Dispatch queues the update and returns immediately. Updates of one chat are
// handled in arrival order on a single worker; different chats run in parallel.
// The handler's context is detached from ctx cancellation so in-flight work
// finishes during shutdown; use Wait to drain.
func (d *Dispatcher) Dispatch(ctx context.Context, update telegram.Update) {
	var chatID int64
	if update.Message != nil {
		chatID = update.Message.Chat.ID
	}

	d.wg.Add(1)
	d.mu.Lock()
	pending, running := d.queues[chatID]
	d.queues[chatID] = append(pending, update)
	d.mu.Unlock()

	if !running {
		go d.drain(context.WithoutCancel(ctx), chatID)
	}
}

func (d *Dispatcher) drain(ctx context.Context, chatID int64) {
	for {
		d.mu.Lock()
		pending := d.queues[chatID]
		if len(pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		update := pending[0]
		d.queues[chatID] = pending[1:]
		d.mu.Unlock()

		d.HandleUpdate(ctx, update)
		d.wg.Done()
	}
}

// Wait blocks until every dispatched update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// HandleUpdate processes one update synchronously.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := d.logger.With("update_id", update.UpdateID, "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	if d.allowed != nil {
		if _, ok := d.allowed[msg.Chat.ID]; !ok {
			log.Warn("update from chat outside allow-list")
			d.reply(ctx, log, msg.Chat.ID, MsgNotAllowed)
			return
		}
	}

	switch {
	case msg.Voice != nil:
		d.handleAudio(ctx, log, msg, core.AudioRef{
			FileID:   msg.Voice.FileID,
			Duration: float64(msg.Voice.Duration),
			Kind:     core.AudioKindVoice{},
		})
	case msg.Audio != nil:
		d.handleAudio(ctx, log, msg, core.AudioRef{
			FileID:   msg.Audio.FileID,
			Duration: float64(msg.Audio.Duration),
			Kind:     core.AudioKindAudio{MIME: msg.Audio.MimeType},
		})
	case strings.HasPrefix(msg.Text, "/"):
		d.handleCommand(ctx, log, msg)
	case msg.Text != "":
		d.handleText(ctx, log, msg)
	}
}

func (d *Dispatcher) handleAudio(ctx context.Context, log *slog.Logger, msg *telegram.Message, ref core.AudioRef) {
	ev := core.AudioEvent{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Username:  msg.From.Username,
		Audio:     ref,
		Timestamp: time.Unix(msg.Date, 0),
	}
	state, err := d.intake.Process(ctx, ev)
	if err == nil {
		return
	}

	var (
		terr *core.TranscriptionError
		nerr *core.NoteServiceError
		derr *core.DownloadError
	)
	switch {
	case errors.As(err, &terr), errors.As(err, &nerr):
		// The user has already been told.
		log.Warn("audio intake ended with error", "state", state, "error", err)
	case errors.As(err, &derr):
		log.Error("audio download failed", "state", state, "error", err)
		d.reply(ctx, log, msg.Chat.ID, "Error: could not download the audio message.")
	default:
		log.Error("audio intake failed", "state", state, "error", err)
		d.reply(ctx, log, msg.Chat.ID, msgInternalError)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, log *slog.Logger, msg *telegram.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch commandName(msg.Text) {
	case "start":
		d.reply(ctx, log, chatID, MsgStart)

	case "register":
		text, err := d.registration.Start(ctx, chatID, userID, msg.From.Username)
		if err != nil {
			log.Error("failed to start registration", "error", err)
			text = msgInternalError
		}
		d.reply(ctx, log, chatID, text)

	case "cancel":
		cancelled, err := d.registration.Cancel(ctx, chatID)
		switch {
		case err != nil:
			log.Error("failed to cancel registration", "error", err)
			d.reply(ctx, log, chatID, msgInternalError)
		case cancelled:
			d.reply(ctx, log, chatID, core.MsgRegisterCancelled)
		default:
			d.reply(ctx, log, chatID, MsgNoRegistering)
		}

	case "user_stats":
		profile, err := d.profiles.Profile(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				d.reply(ctx, log, chatID, MsgNotRegistered)
				return
			}
			log.Error("failed to load profile", "error", err)
			d.reply(ctx, log, chatID, msgInternalError)
			return
		}
		info, err := profile.UserInfo(ctx)
		if err != nil {
			log.Error("failed to build user info", "error", err)
			d.reply(ctx, log, chatID, msgInternalError)
			return
		}
		d.reply(ctx, log, chatID, info)

	case "deregister":
		d.accountAction(ctx, log, chatID, userID, MsgDeregistered, func() error {
			_, err := d.profiles.Anonymize(ctx, userID)
			return err
		})

	case "delete":
		d.accountAction(ctx, log, chatID, userID, MsgDeleted, func() error {
			return d.profiles.Delete(ctx, userID)
		})

	default:
		d.reply(ctx, log, chatID, MsgUnknown)
	}
}

func (d *Dispatcher) accountAction(ctx context.Context, log *slog.Logger, chatID, userID int64, done string, action func() error) {
	if _, err := d.registration.Cancel(ctx, chatID); err != nil {
		log.Warn("failed to drop registration session", "error", err)
	}
	if err := action(); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.reply(ctx, log, chatID, MsgNotRegistered)
			return
		}
		log.Error("account action failed", "user_id", userID, "error", err)
		d.reply(ctx, log, chatID, msgInternalError)
		return
	}
	d.reply(ctx, log, chatID, done)
}

func (d *Dispatcher) handleText(ctx context.Context, log *slog.Logger, msg *telegram.Message) {
	reply, handled, err := d.registration.HandleReply(ctx, msg.Chat.ID, msg.Text)
	if err != nil {
		log.Error("registration step failed", "error", err)
		d.reply(ctx, log, msg.Chat.ID, msgInternalError)
		return
	}
	if handled {
		d.reply(ctx, log, msg.Chat.ID, reply)
		return
	}
	d.reply(ctx, log, msg.Chat.ID, msg.Text)
}

func (d *Dispatcher) reply(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := d.messenger.SendMessage(ctx, chatID, text); err != nil {
		log.Warn("failed to send reply", "error", err)
	}
}

// commandName extracts "register" from "/register@VerbalDiaryBot args".
func commandName(text string) string {
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}
