// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// DeliveryEvent audit log. Rows are inserted and queried, never updated or
// deleted: attempt counts and recency are always derived from this log.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// AppendDeliveryEvent inserts one audit row for a message.
func AppendDeliveryEvent(ctx context.Context, db *gorm.DB, messageID, eventType, detail string) (*domain.DeliveryEvent, error) {
	ev := &domain.DeliveryEvent{
		ID:        uuid.NewString(),
		MessageID: messageID,
		EventType: eventType,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// AttemptState returns the number of attempt-kind events recorded for the
// message and the timestamp of the most recent one (nil when none exist).
// This pair is the entire retry state the delivery engine works from.
func AttemptState(ctx context.Context, db *gorm.DB, messageID string) (int64, *time.Time, error) {
	var attempts int64
	if err := db.WithContext(ctx).
		Model(&domain.DeliveryEvent{}).
		Where("message_id = ? AND event_type IN ?", messageID, domain.AttemptEventTypes).
		Count(&attempts).Error; err != nil {
		return 0, nil, err
	}
	if attempts == 0 {
		return 0, nil, nil
	}

	// Fetch the newest row instead of MAX() to avoid SQLite returning TEXT.
	var row domain.DeliveryEvent
	if err := db.WithContext(ctx).
		Model(&domain.DeliveryEvent{}).
		Select("created_at").
		Where("message_id = ? AND event_type IN ?", messageID, domain.AttemptEventTypes).
		Order("created_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return attempts, &row.CreatedAt, nil
}

// HasExhaustedEvent reports whether a retry_exhausted event already exists
// for the message. The engine checks this before appending so repeated runs
// never duplicate the terminal event.
func HasExhaustedEvent(ctx context.Context, db *gorm.DB, messageID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryEvent{}).
		Where("message_id = ? AND event_type = ?", messageID, domain.EventRetryExhausted).
		Count(&n).Error
	return n > 0, err
}

// ListDeliveryEvents returns all events for a message in insertion order
// (created_at ASC, id ASC).
func ListDeliveryEvents(ctx context.Context, db *gorm.DB, messageID string) ([]domain.DeliveryEvent, error) {
	var out []domain.DeliveryEvent
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
