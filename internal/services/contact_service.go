package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// AddContact opts a phone number in. It reports whether a new row was
// created; adding a number that is already opted in is a no-op.
func AddContact(ctx context.Context, db *gorm.DB, number string) (*domain.Contact, bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, false, ErrInvalidInput
	}
	return repo.GetOrCreateContact(ctx, db, number)
}

// RemoveContact opts a phone number out. It reports whether a row was
// removed; removing an unknown number is a no-op.
func RemoveContact(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return false, ErrInvalidInput
	}
	return repo.DeleteContactByNumber(ctx, db, number)
}

// ContactExists reports whether a phone number is currently opted in.
func ContactExists(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	_, err := repo.GetContactByNumber(ctx, db, number)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HandOverConversation transfers a conversation to a human. Once handed over
// the bot never replies in that conversation again; only explicit admin
// action reaches this state.
func HandOverConversation(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, db, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.Status == domain.ConversationHandedOver {
		return conv, nil
	}
	if err := repo.SetConversationStatus(ctx, db, conv.ID, domain.ConversationHandedOver); err != nil {
		return nil, err
	}
	conv.Status = domain.ConversationHandedOver
	return conv, nil
}
