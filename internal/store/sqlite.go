package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pressly/goose/v3"

	"gwi.com/verbal-diary/internal/store/migrations"
)

const maxSurrogateAttempts = 5

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps a ":memory:" database alive on a single connection.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return newStore(db), nil
}

func newStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// withTx runs fn in a transaction, committing on success and rolling back on error or panic.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}

// User methods
func (s *SQLiteStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO Users (user_id, name, notion_token, database_id) VALUES (?, ?, ?, ?)",
		user.ID, user.Name, user.NotionToken, user.DatabaseID)
	if err != nil {
		return fmt.Errorf("failed to insert user %d: %w", user.ID, translateError(err))
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, name, notion_token, database_id FROM Users WHERE user_id = ?", userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM Users WHERE user_id = ? LIMIT 1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// UpdateUser replaces every mutable field. Callers merge partial changes themselves.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user User) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE Users SET name = ?, notion_token = ?, database_id = ? WHERE user_id = ?",
		user.Name, user.NotionToken, user.DatabaseID, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d not updated: %w", user.ID, ErrNotFound)
	}
	return nil
}

// DeleteUser removes the user and all of their messages.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM Messages WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to delete messages of user %d: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Users WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to delete user %d: %w", userID, err)
		}
		return nil
	})
}

// surrogateID draws a negative id; platform user ids are always positive.
var surrogateID = func() int64 {
	id := uuid.New()
	v := int64(binary.BigEndian.Uint64(id[:8]) >> 1)
	if v == 0 {
		v = 1
	}
	return -v
}

// AnonymizeUser nulls personal data and message bodies and moves every row of the user
// to a fresh surrogate id. The returned id is the surrogate.
func (s *SQLiteStore) AnonymizeUser(ctx context.Context, userID int64) (int64, error) {
	var surrogate int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM Users WHERE user_id = ?)", userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}

		found := false
		for i := 0; i < maxSurrogateAttempts && !found; i++ {
			surrogate = surrogateID()
			var taken bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM Users WHERE user_id = ?)", surrogate).Scan(&taken); err != nil {
				return fmt.Errorf("failed to check surrogate id: %w", err)
			}
			found = !taken
		}
		if !found {
			return fmt.Errorf("no free surrogate id after %d attempts: %w", maxSurrogateAttempts, ErrDuplicateKey)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO Users (user_id, name, notion_token, database_id) VALUES (?, NULL, NULL, NULL)", surrogate); err != nil {
			return fmt.Errorf("failed to insert surrogate user: %w", translateError(err))
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE Messages SET message = NULL, user_id = ? WHERE user_id = ?", surrogate, userID); err != nil {
			return fmt.Errorf("failed to anonymize messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Users WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to remove original user row: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return surrogate, nil
}

func (s *SQLiteStore) GetAllUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, name, notion_token, database_id FROM Users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Message methods
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg Message) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO Messages (user_id, date, message, word_count, message_type, audio_length) VALUES (?, ?, ?, ?, ?, ?)",
		msg.UserID, FormatDate(msg.Date), msg.Text, msg.WordCount, string(msg.Type), msg.AudioLength)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message for user %d: %w", msg.UserID, translateError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}
	return id, nil
}

// GetMessagesByUser returns the user's messages in insertion (chronological) order.
func (s *SQLiteStore) GetMessagesByUser(ctx context.Context, userID int64) ([]Message, error) {
	return s.queryMessages(ctx,
		"SELECT message_id, user_id, date, message, word_count, message_type, audio_length FROM Messages WHERE user_id = ? ORDER BY message_id ASC",
		userID)
}

func (s *SQLiteStore) GetAllMessages(ctx context.Context) ([]Message, error) {
	return s.queryMessages(ctx,
		"SELECT message_id, user_id, date, message, word_count, message_type, audio_length FROM Messages ORDER BY message_id ASC")
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg     Message
			date    string
			text    sql.NullString
			msgType string
		)
		if err := rows.Scan(&msg.ID, &msg.UserID, &date, &text, &msg.WordCount, &msgType, &msg.AudioLength); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if msg.Date, err = ParseDate(date); err != nil {
			return nil, err
		}
		if text.Valid {
			msg.Text = &text.String
		}
		msg.Type = MessageType(msgType)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user                    User
		name, token, databaseID sql.NullString
	)
	if err := row.Scan(&user.ID, &name, &token, &databaseID); err != nil {
		return nil, err
	}
	user.Name = nullableString(name)
	user.NotionToken = nullableString(token)
	user.DatabaseID = nullableString(databaseID)
	return &user, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
