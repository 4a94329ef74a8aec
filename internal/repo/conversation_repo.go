// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// The open-conversation invariant (one NULL closed_at row per wa_number +
// contact pair) is enforced by the partial unique index created in
// AutoMigrate, not by application-level locking: CreateConversation maps the
// violation to ErrDuplicate and callers re-read the winning row.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// GetOpenConversation fetches the single open conversation for the given
// (wa_number_id, contact_id) pair. Returns ErrNotFound when none is open.
func GetOpenConversation(ctx context.Context, db *gorm.DB, waNumberID, contactID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("wa_number_id = ? AND contact_id = ? AND closed_at IS NULL", waNumberID, contactID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a new open conversation with status "automated".
// On a unique-constraint violation (a racing writer opened the conversation
// first) it returns ErrDuplicate.
func CreateConversation(ctx context.Context, db *gorm.DB, clientID, waNumberID, contactID string) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		WaNumberID: waNumberID,
		ContactID:  contactID,
		Status:     domain.ConversationAutomated,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetOrCreateOpenConversation resolves the open conversation for the pair,
// creating one when absent. The duplicate-insert race resolves by re-reading.
func GetOrCreateOpenConversation(ctx context.Context, db *gorm.DB, clientID, waNumberID, contactID string) (*domain.Conversation, bool, error) {
	if c, err := GetOpenConversation(ctx, db, waNumberID, contactID); err == nil {
		return c, false, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	c, err := CreateConversation(ctx, db, clientID, waNumberID, contactID)
	if err == ErrDuplicate {
		c, rerr := GetOpenConversation(ctx, db, waNumberID, contactID)
		return c, false, rerr
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// GetConversation fetches a conversation by id.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// SetConversationStatus updates a conversation's status. Returns ErrNotFound
// when the conversation does not exist.
func SetConversationStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchLastMessageAt stamps the conversation's last_message_at. Best effort:
// the inbound pipeline does not abort when this fails.
func TouchLastMessageAt(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}

// CountConversations returns the total number of conversations.
func CountConversations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Conversation{}).Count(&total).Error
	return total, err
}

// ListConversationsPage returns a paginated slice of conversations ordered by
// creation time descending (most recent first).
func ListConversationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
