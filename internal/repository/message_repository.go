package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-api/internal/models"
)

const messageSelect = `SELECT m.id, m.sender_id, s.full_name AS sender_name, m.recipient_id, r.full_name AS recipient_name,
        m.subject, m.body, m.read_at, m.created_at
        FROM messages m
        JOIN admins s ON s.id = m.sender_id
        JOIN admins r ON r.id = m.recipient_id`

// MessageRepository stores internal admin messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const insertMessage = `INSERT INTO messages (id, sender_id, recipient_id, subject, body, created_at)
        VALUES (:id, :sender_id, :recipient_id, :subject, :body, :created_at)`

func prepareMessage(message *models.Message, now time.Time) {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = now
}

// Create stores a single message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	prepareMessage(message, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertMessage, message); err != nil {
		return wrapErr("create message", err)
	}
	return nil
}

// CreateMany stores a broadcast as one row per recipient in a single transaction.
func (r *MessageRepository) CreateMany(ctx context.Context, messages []*models.Message) (err error) {
	if len(messages) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin broadcast: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, message := range messages {
		prepareMessage(message, now)
		if _, err = tx.NamedExecContext(ctx, insertMessage, message); err != nil {
			return wrapErr("broadcast message", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit broadcast: %w", err)
	}
	return nil
}

// List returns one page of an admin's inbox or sent folder, newest first.
func (r *MessageRepository) List(ctx context.Context, filter models.MessageFilter) ([]models.Message, int, error) {
	column := "m.recipient_id"
	if filter.Box == models.BoxSent {
		column = "m.sender_id"
	}
	conditions := []string{column + " = $1"}
	args := []interface{}{filter.AdminID}
	if filter.UnreadOnly {
		conditions = append(conditions, "m.read_at IS NULL")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY m.created_at DESC LIMIT %d OFFSET %d", messageSelect, where, size, offset)
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM messages m"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	return messages, total, nil
}

// FindByID returns a message by id.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.GetContext(ctx, &message, messageSelect+" WHERE m.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	return &message, nil
}

// MarkRead stamps read_at once; later calls keep the first timestamp.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE messages SET read_at = COALESCE(read_at, $2) WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// Delete removes a message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// CountUnread returns the number of unread messages addressed to the admin.
func (r *MessageRepository) CountUnread(ctx context.Context, adminID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND read_at IS NULL`
	if err := r.db.GetContext(ctx, &count, query, adminID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}
