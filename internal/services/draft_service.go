package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// IdempotencyKeyPrefix namespaces outbound draft idempotency keys in the
// provider_message_id column so they can never collide with real provider IDs.
const IdempotencyKeyPrefix = "parent_inbound:"

// DraftIdempotencyKey builds the idempotency key for the outbound draft
// produced by the given inbound message.
func DraftIdempotencyKey(inboundMessageID string) string {
	return IdempotencyKeyPrefix + inboundMessageID
}

// DraftService stores outbound drafts exactly once per triggering inbound
// message, with a secondary guard against rapid-fire identical replies.
//
// Guards are checked in order:
//  1. Idempotency: if a draft keyed to the same inbound message already
//     exists, return it unchanged. Webhook redelivery is a no-op.
//  2. Dedup: if an identical text was drafted in this conversation within
//     Window, suppress the new draft and return nil.
type DraftService struct {
	// Window is the same-text suppression window. Zero disables dedup.
	Window time.Duration

	// Now is the clock; tests may override it.
	Now func() time.Time
}

// NewDraftService returns a DraftService with the given dedup window and the
// real clock.
func NewDraftService(window time.Duration) *DraftService {
	return &DraftService{Window: window, Now: func() time.Time { return time.Now().UTC() }}
}

// StoreDraft records an outbound draft for the conversation, keyed to the
// inbound message that triggered it. It returns the stored (or pre-existing)
// draft, or (nil, nil) when the dedup window suppressed it.
func (s *DraftService) StoreDraft(ctx context.Context, db *gorm.DB, conversationID, inboundMessageID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if conversationID == "" || inboundMessageID == "" {
		return nil, ErrInvalidInput
	}

	key := DraftIdempotencyKey(inboundMessageID)

	// Guard 1: one draft per inbound message, ever.
	existing, err := repo.GetOutboundByProviderKey(ctx, db, conversationID, key)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		log.Debug().
			Str("conversation_id", conversationID).
			Str("message_id", existing.ID).
			Msg("outbound draft already stored for inbound message")
		return existing, nil
	}

	// Guard 2: identical text within the dedup window.
	if s.Window > 0 {
		last, err := repo.LastOutboundWithText(ctx, db, conversationID, text)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		if last != nil && s.Now().Sub(last.StoredAt) < s.Window {
			log.Info().
				Str("conversation_id", conversationID).
				Str("prior_message_id", last.ID).
				Msg("duplicate outbound text suppressed within dedup window")
			return nil, nil
		}
	}

	msg, err := repo.CreateOutboundMessage(ctx, db, conversationID, text, key)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("conversation_id", conversationID).
		Str("message_id", msg.ID).
		Msg("outbound draft stored")
	return msg, nil
}
