package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/gateway"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// Retry policy for outbound delivery. Attempts are counted from the
// delivery_events audit trail, never from a mutable counter.
const (
	MaxAttempts = 3

	backoffAfterAttempt1 = 5 * time.Minute
	backoffAfterAttempt2 = 30 * time.Minute
)

// DeliveryService is the outbound delivery attempt engine. It walks the
// stored outbound drafts oldest first, decides per message whether an attempt
// is due, invokes the send gateway, and appends an immutable audit event for
// every attempt. Webhooks never call the gateway; this engine is the single
// delivery path.
type DeliveryService struct {
	Gateway gateway.SendGateway

	// Now is the clock; tests may override it.
	Now func() time.Time
}

// NewDeliveryService returns a DeliveryService using the given gateway and
// the real clock.
func NewDeliveryService(gw gateway.SendGateway) *DeliveryService {
	return &DeliveryService{Gateway: gw, Now: func() time.Time { return time.Now().UTC() }}
}

// RunDelivery performs one delivery pass over all outbound drafts and returns
// the number of attempts performed. Eligibility per message:
//   - fewer than MaxAttempts prior attempt events, and
//   - the backoff since the newest attempt event has elapsed
//     (none after 0 attempts, 5m after 1, 30m after 2).
//
// A message at the cap gets a single retry_exhausted event and is skipped on
// every later pass.
func (s *DeliveryService) RunDelivery(ctx context.Context, db *gorm.DB) (int, error) {
	now := s.Now()

	drafts, err := repo.ListOutboundOldestFirst(ctx, db)
	if err != nil {
		return 0, err
	}

	performed := 0
	for i := range drafts {
		attempted, err := s.attemptIfEligible(ctx, db, &drafts[i], now)
		if err != nil {
			log.Warn().Err(err).Str("message_id", drafts[i].ID).Msg("delivery attempt failed")
			continue
		}
		if attempted {
			performed++
		}
	}

	log.Info().Int("attempts", performed).Int("drafts", len(drafts)).Msg("delivery pass complete")
	return performed, nil
}

func (s *DeliveryService) attemptIfEligible(ctx context.Context, db *gorm.DB, msg *domain.Message, now time.Time) (bool, error) {
	attempts, lastAt, err := repo.AttemptState(ctx, db, msg.ID)
	if err != nil {
		return false, err
	}

	if attempts >= MaxAttempts {
		return false, s.ensureExhausted(ctx, db, msg.ID, attempts)
	}

	if lastAt != nil {
		if wait := requiredWait(attempts); wait > 0 && now.Sub(*lastAt) < wait {
			return false, nil
		}
	}

	req, err := s.buildSendRequest(ctx, db, msg)
	if err != nil {
		return false, err
	}

	receipt := s.Gateway.SendText(ctx, req)

	eventType := domain.EventRetryAttempt
	if receipt.Status == gateway.StatusDisabled || receipt.Status == gateway.StatusFailed {
		eventType = domain.EventDryRunAttempt
	}

	if _, err := repo.AppendDeliveryEvent(ctx, db, msg.ID, eventType, receipt.Detail); err != nil {
		return false, err
	}
	deliveryAttempts.WithLabelValues(eventType).Inc()
	if err := repo.StampSentAt(ctx, db, msg.ID, now); err != nil {
		return false, err
	}

	log.Info().
		Str("message_id", msg.ID).
		Str("status", string(receipt.Status)).
		Str("event_type", eventType).
		Int64("attempt", attempts+1).
		Msg("delivery attempt recorded")
	return true, nil
}

// buildSendRequest resolves the recipient and sender numbers for an outbound
// draft through its conversation. A conversation whose contact has opted out
// since the draft was stored no longer has a deliverable recipient.
func (s *DeliveryService) buildSendRequest(ctx context.Context, db *gorm.DB, msg *domain.Message) (gateway.SendRequest, error) {
	conv, err := repo.GetConversation(ctx, db, msg.ConversationID)
	if err != nil {
		return gateway.SendRequest{}, fmt.Errorf("resolve conversation: %w", err)
	}
	contact, err := repo.GetContact(ctx, db, conv.ContactID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return gateway.SendRequest{}, fmt.Errorf("contact opted out: %w", err)
		}
		return gateway.SendRequest{}, fmt.Errorf("resolve contact: %w", err)
	}

	req := gateway.SendRequest{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		ToNumber:       contact.ContactNumber,
		BodyText:       msg.Text,
		ClientID:       conv.ClientID,
	}
	if number, err := repo.GetNumber(ctx, db, conv.WaNumberID); err == nil {
		req.FromNumber = number.DestinationNumber
	}
	return req, nil
}

// requiredWait returns the backoff required after the given number of prior
// attempts. Zero means an attempt may happen immediately.
func requiredWait(attempts int64) time.Duration {
	switch attempts {
	case 0:
		return 0
	case 1:
		return backoffAfterAttempt1
	case 2:
		return backoffAfterAttempt2
	default:
		return 0
	}
}

// ensureExhausted appends the terminal retry_exhausted event exactly once.
func (s *DeliveryService) ensureExhausted(ctx context.Context, db *gorm.DB, messageID string, attempts int64) error {
	exists, err := repo.HasExhaustedEvent(ctx, db, messageID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	detail := fmt.Sprintf("max attempts reached (%d)", attempts)
	if _, err := repo.AppendDeliveryEvent(ctx, db, messageID, domain.EventRetryExhausted, detail); err != nil {
		return err
	}
	deliveryExhausted.Inc()
	log.Warn().Str("message_id", messageID).Int64("attempts", attempts).Msg("delivery retries exhausted")
	return nil
}
