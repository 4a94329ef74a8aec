// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries backing the
// admin reporting endpoints. Each function is context-aware and read-only.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// OutboundSummary aggregates delivery progress across all conversations.
type OutboundSummary struct {
	TotalOutboundMessages      int64      `json:"total_outbound_messages"`
	OutboundWithDeliveryEvents int64      `json:"outbound_with_delivery_events"`
	TotalDeliveryEvents        int64      `json:"total_delivery_events"`
	LatestOutboundAt           *time.Time `json:"latest_outbound_at"`
}

// GetOutboundSummary computes the fleet-wide outbound delivery summary.
func GetOutboundSummary(ctx context.Context, db *gorm.DB) (*OutboundSummary, error) {
	var s OutboundSummary

	if err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("direction = ?", domain.DirectionOutbound).
		Count(&s.TotalOutboundMessages).Error; err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).
		Model(&domain.DeliveryEvent{}).
		Distinct("message_id").
		Count(&s.OutboundWithDeliveryEvents).Error; err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).
		Model(&domain.DeliveryEvent{}).
		Count(&s.TotalDeliveryEvents).Error; err != nil {
		return nil, err
	}

	if s.TotalOutboundMessages > 0 {
		// Fetch the newest row instead of MAX() to avoid SQLite returning TEXT.
		var row domain.Message
		err := db.WithContext(ctx).
			Model(&domain.Message{}).
			Select("stored_at").
			Where("direction = ?", domain.DirectionOutbound).
			Order("stored_at DESC").
			Limit(1).
			Scan(&row).Error
		if err != nil {
			return nil, err
		}
		s.LatestOutboundAt = &row.StoredAt
	}

	return &s, nil
}

// ConversationSummary aggregates per-conversation traffic for reporting.
type ConversationSummary struct {
	ConversationID   string     `json:"conversation_id"`
	Status           string     `json:"status"`
	InboundCount     int64      `json:"inbound_count"`
	OutboundCount    int64      `json:"outbound_count"`
	LastInboundText  string     `json:"last_inbound_text"`
	LastOutboundText string     `json:"last_outbound_text"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
}

// GetConversationSummary computes the message counts and latest texts for one
// conversation. Returns ErrNotFound when the conversation does not exist.
func GetConversationSummary(ctx context.Context, db *gorm.DB, conversationID string) (*ConversationSummary, error) {
	conv, err := GetConversation(ctx, db, conversationID)
	if err != nil {
		return nil, err
	}

	s := &ConversationSummary{
		ConversationID: conv.ID,
		Status:         conv.Status,
	}

	if s.InboundCount, err = CountMessages(ctx, db, conversationID, domain.DirectionInbound); err != nil {
		return nil, err
	}
	if s.OutboundCount, err = CountMessages(ctx, db, conversationID, domain.DirectionOutbound); err != nil {
		return nil, err
	}
	if s.LastInboundText, err = LastMessageText(ctx, db, conversationID, domain.DirectionInbound); err != nil {
		return nil, err
	}
	if s.LastOutboundText, err = LastMessageText(ctx, db, conversationID, domain.DirectionOutbound); err != nil {
		return nil, err
	}

	if s.InboundCount+s.OutboundCount > 0 {
		var row domain.Message
		err := db.WithContext(ctx).
			Model(&domain.Message{}).
			Select("stored_at").
			Where("conversation_id = ?", conversationID).
			Order("stored_at DESC").
			Limit(1).
			Scan(&row).Error
		if err != nil {
			return nil, err
		}
		s.LastActivityAt = &row.StoredAt
	}

	return s, nil
}
