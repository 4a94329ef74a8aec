// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read access to the per-client FAQ rule
// set consumed by the response selector.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// ListActiveFaqs returns the client's active FAQ items in a stable order
// (created_at ASC, id ASC) so first-match selection is deterministic even
// when creation timestamps collide.
func ListActiveFaqs(ctx context.Context, db *gorm.DB, clientID string) ([]domain.FaqItem, error) {
	var out []domain.FaqItem
	err := db.WithContext(ctx).
		Where("client_id = ? AND is_active = ?", clientID, true).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
