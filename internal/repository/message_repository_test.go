package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

func TestMessageRepositoryCreateMany(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").WithArgs(sqlmock.AnyArg(), "a1", "a2", "Notice", "Body", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").WithArgs(sqlmock.AnyArg(), "a1", "a3", "Notice", "Body", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	messages := []*models.Message{
		{SenderID: "a1", RecipientID: "a2", Subject: "Notice", Body: "Body"},
		{SenderID: "a1", RecipientID: "a3", Subject: "Notice", Body: "Body"},
	}
	require.NoError(t, repo.CreateMany(context.Background(), messages))
	assert.NotEmpty(t, messages[0].ID)
	assert.NotEqual(t, messages[0].ID, messages[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepositoryListInboxUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.recipient_id = $1 AND m.read_at IS NULL ORDER BY m.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "sender_name", "recipient_id", "recipient_name", "subject", "body", "read_at", "created_at"}).
			AddRow("m1", "a1", "Super", "a2", "Admin", "Notice", "Body", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages m WHERE m.recipient_id = $1 AND m.read_at IS NULL")).
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	messages, total, err := repo.List(context.Background(), models.MessageFilter{AdminID: "a2", Box: models.BoxInbox, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Super", messages[0].SenderName)
	assert.Nil(t, messages[0].ReadAt)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepositoryListSent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.sender_id = $1 ORDER BY m.created_at DESC")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages m WHERE m.sender_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.MessageFilter{AdminID: "a1", Box: models.BoxSent})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepositoryCountUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL")).
		WithArgs("a2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
