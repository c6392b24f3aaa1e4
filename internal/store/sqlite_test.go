package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func audioMessage(userID int64, text string, date time.Time) Message {
	return Message{
		UserID:      userID,
		Date:        date,
		Text:        strPtr(text),
		WordCount:   len(strings.Fields(text)),
		Type:        MessageTypeAudio,
		AudioLength: 3.5,
	}
}

func TestCreateGetUpdateUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, User{ID: 999, Name: strPtr("test_name"), NotionToken: strPtr("test_token")}))

	got, err := s.GetUser(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.ID)
	assert.Equal(t, "test_name", *got.Name)
	assert.Equal(t, "test_token", *got.NotionToken)
	assert.Nil(t, got.DatabaseID)

	require.NoError(t, s.UpdateUser(ctx, User{ID: 999, Name: strPtr("test_name2"), NotionToken: strPtr("test_token2"), DatabaseID: strPtr("db")}))

	got, err = s.GetUser(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, "test_name2", *got.Name)
	assert.Equal(t, "test_token2", *got.NotionToken)
	assert.Equal(t, "db", *got.DatabaseID)
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, User{ID: 1}))
	err := s.CreateUser(ctx, User{ID: 1, Name: strPtr("again")})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestGetUser_NotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := s.UserExists(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateUser_NotFound(t *testing.T) {
	s := setupStore(t)
	err := s.UpdateUser(context.Background(), User{ID: 5, Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertMessage_UnknownUser(t *testing.T) {
	s := setupStore(t)
	_, err := s.InsertMessage(context.Background(), audioMessage(77, "hello", time.Now()))
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestMessagesInInsertionOrder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User{ID: 1}))

	base := time.Date(2024, 2, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	texts := []string{"first message", "second one here", "third"}
	var ids []int64
	for i, text := range texts {
		// Dates deliberately out of order: insertion order wins.
		id, err := s.InsertMessage(ctx, audioMessage(1, text, base.Add(-time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	msgs, err := s.GetMessagesByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
		assert.Equal(t, texts[i], *m.Text)
		assert.Equal(t, len(strings.Fields(texts[i])), m.WordCount)
		assert.Equal(t, MessageTypeAudio, m.Type)
		assert.InDelta(t, 3.5, m.AudioLength, 1e-9)
	}
	assert.True(t, msgs[0].Date.Equal(base))

	all, err := s.GetAllMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteUser_RemovesMessages(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User{ID: 1}))
	require.NoError(t, s.CreateUser(ctx, User{ID: 2}))
	_, err := s.InsertMessage(ctx, audioMessage(1, "bye", time.Now()))
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, audioMessage(2, "stay", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, 1))

	exists, err := s.UserExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
	msgs, err := s.GetMessagesByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	others, err := s.GetMessagesByUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestAnonymizeUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User{ID: 42, Name: strPtr("alice"), NotionToken: strPtr("secret"), DatabaseID: strPtr("db")}))
	for _, text := range []string{"one", "two words", "three little words"} {
		_, err := s.InsertMessage(ctx, audioMessage(42, text, time.Now()))
		require.NoError(t, err)
	}

	surrogate, err := s.AnonymizeUser(ctx, 42)
	require.NoError(t, err)
	assert.Less(t, surrogate, int64(0))

	exists, err := s.UserExists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, exists)

	anon, err := s.GetUser(ctx, surrogate)
	require.NoError(t, err)
	assert.Nil(t, anon.Name)
	assert.Nil(t, anon.NotionToken)
	assert.Nil(t, anon.DatabaseID)

	msgs, err := s.GetMessagesByUser(ctx, surrogate)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Nil(t, m.Text)
		assert.NotZero(t, m.WordCount)
	}
}

func TestAnonymizeUser_SurrogateCollision(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User{ID: 1}))
	require.NoError(t, s.CreateUser(ctx, User{ID: -5}))

	orig := surrogateID
	t.Cleanup(func() { surrogateID = orig })
	candidates := []int64{-5, -6}
	surrogateID = func() int64 {
		id := candidates[0]
		candidates = candidates[1:]
		return id
	}

	surrogate, err := s.AnonymizeUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-6), surrogate)
}

func TestAnonymizeUser_NotFound(t *testing.T) {
	s := setupStore(t)
	_, err := s.AnonymizeUser(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAllUsers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User{ID: 2}))
	require.NoError(t, s.CreateUser(ctx, User{ID: 1, Name: strPtr("bob")}))

	users, err := s.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, "bob", *users[0].Name)
}

func TestDateRoundTrip(t *testing.T) {
	zones := []*time.Location{
		time.UTC,
		time.FixedZone("", 2*3600),
		time.FixedZone("", -(5*3600 + 30*60)),
	}
	for _, loc := range zones {
		orig := time.Date(2023, 12, 31, 23, 59, 58, 0, loc)
		parsed, err := ParseDate(FormatDate(orig))
		require.NoError(t, err)
		assert.True(t, orig.Equal(parsed), "instant changed for %s", FormatDate(orig))
		_, origOffset := orig.Zone()
		_, parsedOffset := parsed.Zone()
		assert.Equal(t, origOffset, parsedOffset)
	}

	assert.Equal(t, "2024-01-02 03:04:05 +0100", FormatDate(time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))))
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}

func TestGetUser_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, name, notion_token, database_id FROM Users WHERE user_id = ?")).
		WithArgs(int64(1)).
		WillReturnError(errors.New("disk I/O error"))

	_, err = newStore(db).GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM Messages").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM Users").WithArgs(int64(7)).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err = newStore(db).DeleteUser(context.Background(), 7)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
