// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are immutable after insert; the only permitted update is
// the delivery engine stamping sent_at on outbound rows.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// CreateInboundMessage inserts an immutable inbound message row.
func CreateInboundMessage(ctx context.Context, db *gorm.DB, conversationID, text string, receivedAt time.Time) (*domain.Message, error) {
	now := time.Now().UTC()
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Direction:      domain.DirectionInbound,
		Text:           text,
		ReceivedAt:     &receivedAt,
		StoredAt:       now,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// CreateOutboundMessage inserts an immutable outbound draft carrying the
// idempotency key in provider_message_id. Only the draft service calls this.
func CreateOutboundMessage(ctx context.Context, db *gorm.DB, conversationID, text, providerMessageID string) (*domain.Message, error) {
	m := &domain.Message{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		Direction:         domain.DirectionOutbound,
		Text:              text,
		ProviderMessageID: providerMessageID,
		StoredAt:          time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage fetches a message by id.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetOutboundByProviderKey fetches the outbound message in a conversation
// whose provider_message_id equals key. Returns ErrNotFound when no draft
// carries the key; the draft service uses this for the idempotency check.
func GetOutboundByProviderKey(ctx context.Context, db *gorm.DB, conversationID, key string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ? AND provider_message_id = ?",
			conversationID, domain.DirectionOutbound, key).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LastOutboundWithText fetches the most recently stored outbound message in
// the conversation carrying exactly this text. Returns ErrNotFound when none
// exists; the draft service uses this for the time-window dedup check.
func LastOutboundWithText(ctx context.Context, db *gorm.DB, conversationID, text string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ? AND message_text = ?",
			conversationID, domain.DirectionOutbound, text).
		Order("stored_at desc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListOutboundOldestFirst returns all outbound messages ordered by stored_at
// ascending (oldest draft first), the processing order of the delivery engine.
func ListOutboundOldestFirst(ctx context.Context, db *gorm.DB) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("direction = ?", domain.DirectionOutbound).
		Order("stored_at asc, id asc").
		Find(&out).Error
	return out, err
}

// StampSentAt records that a delivery attempt occurred for the message.
// This is the single permitted mutation of a message row.
func StampSentAt(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Update("sent_at", at).Error
}

// ListMessagesPage returns a paginated slice of a conversation's messages
// ordered deterministically (stored_at ASC, id ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("stored_at asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages in a conversation, optionally
// filtered by direction (pass "" for both).
func CountMessages(ctx context.Context, db *gorm.DB, conversationID, direction string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)
	if direction != "" {
		q = q.Where("direction = ?", direction)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// LastMessageText returns the text of the most recent message in the
// conversation for the given direction, or "" when none exists.
func LastMessageText(ctx context.Context, db *gorm.DB, conversationID, direction string) (string, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ?", conversationID, direction).
		Order("stored_at desc").
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Text, nil
}
