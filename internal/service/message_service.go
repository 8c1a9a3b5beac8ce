package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/whisperwall/internal/models"
	"github.com/whisperwall/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotAcceptingMessages = errors.New("user is not accepting messages")
	ErrEmptyContent         = errors.New("message content must not be empty")
	ErrContentTooLong       = errors.New("message content exceeds the maximum length")
)

// MaxMessageLength bounds message content at intake so the embedded list
// cannot grow without limit per message.
const MaxMessageLength = 300

// MessageService handles anonymous message intake and owner-side retrieval
type MessageService struct {
	users repository.UserRepository
}

// NewMessageService creates a new MessageService
func NewMessageService(users repository.UserRepository) *MessageService {
	return &MessageService{users: users}
}

// SendRequest represents an anonymous message submission
type SendRequest struct {
	Username string `json:"username" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// UpdateAcceptanceRequest represents an acceptance flag update
type UpdateAcceptanceRequest struct {
	AcceptMessages *bool `json:"accept_messages" binding:"required"`
}

// Send appends a message to the target user's inbox. The acceptance flag is
// evaluated once, before the append; the append itself is a single atomic
// document update.
func (s *MessageService) Send(ctx context.Context, username, content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrContentTooLong
	}

	user, err := s.users.FindVerifiedByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !user.IsAcceptingMessages {
		return ErrNotAcceptingMessages
	}

	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return s.users.PushMessage(ctx, user.ID, msg)
}

// Messages returns the caller's messages ordered newest first
func (s *MessageService) Messages(ctx context.Context, userID string) ([]models.Message, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, repository.ErrUserNotFound
	}
	return s.users.MessagesNewestFirst(ctx, id)
}

// AcceptingMessages returns the caller's current acceptance flag
func (s *MessageService) AcceptingMessages(ctx context.Context, userID string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false, repository.ErrUserNotFound
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsAcceptingMessages, nil
}

// SetAcceptingMessages updates the caller's acceptance flag and returns the
// stored value
func (s *MessageService) SetAcceptingMessages(ctx context.Context, userID string, accepting bool) (bool, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false, repository.ErrUserNotFound
	}
	if err := s.users.SetAcceptingMessages(ctx, id, accepting); err != nil {
		return false, err
	}
	return accepting, nil
}
