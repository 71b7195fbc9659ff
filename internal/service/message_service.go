package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

type messageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	CreateMany(ctx context.Context, messages []*models.Message) error
	List(ctx context.Context, filter models.MessageFilter) ([]models.Message, int, error)
	FindByID(ctx context.Context, id string) (*models.Message, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountUnread(ctx context.Context, adminID string) (int, error)
}

type messageRecipientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

// SendMessageRequest addresses one admin, or every active admin when Broadcast is set.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required_without=Broadcast"`
	Broadcast   bool   `json:"broadcast"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Body        string `json:"body" validate:"required,max=5000"`
}

// UnreadCount is the notification badge payload.
type UnreadCount struct {
	Unread int `json:"unread"`
}

// MessageService delivers internal messages between admins.
type MessageService struct {
	repo      messageRepository
	admins    messageRecipientRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMessageService constructs the message service.
func NewMessageService(repo messageRepository, admins messageRecipientRepository, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, admins: admins, validator: validate, logger: logger, now: time.Now}
}

// Send stores a direct message or fans a broadcast out to every other active admin.
// It returns the stored rows.
func (s *MessageService) Send(ctx context.Context, principal *models.Principal, req SendMessageRequest) ([]*models.Message, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid message payload")
	}
	subject := strings.TrimSpace(req.Subject)
	body := strings.TrimSpace(req.Body)

	if !req.Broadcast {
		if req.RecipientID == principal.AdminID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "cannot send a message to yourself")
		}
		recipient, err := s.admins.FindByID(ctx, req.RecipientID)
		if err != nil {
			return nil, translateStoreError(err, "recipient", "load recipient")
		}
		if !recipient.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, "recipient account is inactive")
		}
		message := &models.Message{SenderID: principal.AdminID, RecipientID: recipient.ID, Subject: subject, Body: body}
		if err := s.repo.Create(ctx, message); err != nil {
			return nil, translateStoreError(err, "message", "send message")
		}
		return []*models.Message{message}, nil
	}

	ids, err := s.admins.ListActiveIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipients")
	}
	messages := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		if id == principal.AdminID {
			continue
		}
		messages = append(messages, &models.Message{SenderID: principal.AdminID, RecipientID: id, Subject: subject, Body: body})
	}
	if len(messages) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no recipients for broadcast")
	}
	if err := s.repo.CreateMany(ctx, messages); err != nil {
		return nil, translateStoreError(err, "message", "broadcast message")
	}
	s.logger.Info("message broadcast", zap.String("sender_id", principal.AdminID), zap.Int("recipients", len(messages)))
	return messages, nil
}

// List returns the principal's inbox or sent folder, newest first.
func (s *MessageService) List(ctx context.Context, principal *models.Principal, box models.MessageBox, unreadOnly bool, page, pageSize int) ([]models.Message, *models.Pagination, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, nil, err
	}
	if box != models.BoxSent {
		box = models.BoxInbox
	}
	filter := models.MessageFilter{AdminID: principal.AdminID, Box: box, UnreadOnly: unreadOnly, Page: page, PageSize: pageSize}
	messages, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, paginate(page, pageSize, total), nil
}

// MarkRead stamps a received message as read.
func (s *MessageService) MarkRead(ctx context.Context, principal *models.Principal, id string) (*models.Message, error) {
	message, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if message.RecipientID != principal.AdminID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the recipient can mark a message read")
	}
	if message.ReadAt == nil {
		at := s.now().UTC()
		if err := s.repo.MarkRead(ctx, id, at); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
		}
		message.ReadAt = &at
	}
	return message, nil
}

// Delete removes a message for its sender or recipient.
func (s *MessageService) Delete(ctx context.Context, principal *models.Principal, id string) error {
	message, err := s.load(ctx, principal, id)
	if err != nil {
		return err
	}
	if message.SenderID != principal.AdminID && message.RecipientID != principal.AdminID {
		return appErrors.Clone(appErrors.ErrForbidden, "message belongs to other admins")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	return nil
}

// UnreadCount returns the number of unread messages in the principal's inbox.
func (s *MessageService) UnreadCount(ctx context.Context, principal *models.Principal) (*UnreadCount, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	count, err := s.repo.CountUnread(ctx, principal.AdminID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread messages")
	}
	return &UnreadCount{Unread: count}, nil
}

func (s *MessageService) load(ctx context.Context, principal *models.Principal, id string) (*models.Message, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	message, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "message", "load message")
	}
	return message, nil
}
