// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Contact
// model. Contact existence doubles as the opt-in signal, so creation and
// deletion here implement opt-in/opt-out.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
)

// GetContactByNumber fetches a contact by its phone number.
// Returns ErrNotFound when the number is unknown (i.e. opted out or never seen).
func GetContactByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Contact, error) {
	var c domain.Contact
	err := db.WithContext(ctx).
		Where("contact_number = ?", number).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContact fetches a contact by id.
func GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContact inserts a new contact row. On a unique-constraint violation
// it returns ErrDuplicate so the caller can re-read the row created by the
// racing writer; concurrent webhooks for a brand-new sender must end up with
// exactly one persisted row.
func CreateContact(ctx context.Context, db *gorm.DB, number, displayName string) (*domain.Contact, error) {
	c := &domain.Contact{
		ID:            uuid.NewString(),
		ContactNumber: number,
		DisplayName:   displayName,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetOrCreateContact resolves a contact by number, creating it when absent.
// The duplicate-insert race is resolved by re-reading.
func GetOrCreateContact(ctx context.Context, db *gorm.DB, number string) (*domain.Contact, bool, error) {
	if c, err := GetContactByNumber(ctx, db, number); err == nil {
		return c, false, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	c, err := CreateContact(ctx, db, number, "")
	if err == ErrDuplicate {
		c, rerr := GetContactByNumber(ctx, db, number)
		return c, false, rerr
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// DeleteContactByNumber removes a contact row (opt-out). It reports whether a
// row was actually deleted; deleting an unknown number is not an error.
func DeleteContactByNumber(ctx context.Context, db *gorm.DB, number string) (bool, error) {
	res := db.WithContext(ctx).
		Where("contact_number = ?", number).
		Delete(&domain.Contact{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountContacts returns the total number of contact rows.
func CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Contact{}).Count(&total).Error
	return total, err
}

// ListContactsPage returns a paginated slice of contacts ordered by creation
// time descending (most recent first).
func ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
