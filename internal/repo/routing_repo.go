// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only lookups used to route an
// inbound webhook to a tenant: WhatsAppNumber by destination number and
// Client by id. These rows are provisioned externally and never written here.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// GetNumberByDestination fetches the WhatsAppNumber registered for the given
// destination number (the business number an inbound message was sent to).
// Returns ErrNotFound when no number is registered.
func GetNumberByDestination(ctx context.Context, db *gorm.DB, destination string) (*domain.WhatsAppNumber, error) {
	var n domain.WhatsAppNumber
	err := db.WithContext(ctx).
		Where("destination_number = ?", destination).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetNumber fetches a WhatsAppNumber by id. The delivery engine uses this to
// recover the business number an outbound message should be sent from.
func GetNumber(ctx context.Context, db *gorm.DB, id string) (*domain.WhatsAppNumber, error) {
	var n domain.WhatsAppNumber
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetClient fetches a client by id. Returns ErrNotFound when missing, which
// the inbound pipeline treats as a data-integrity condition (a number row
// pointing at a client that does not exist).
func GetClient(ctx context.Context, db *gorm.DB, id string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
