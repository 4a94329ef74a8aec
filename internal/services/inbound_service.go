// Package services contains the business logic of the WhatsApp automation
// backend: the inbound resolution pipeline, response selection, outbound
// draft creation, contact opt-in management, and the delivery attempt engine.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// Opt-in command keywords and their draft confirmations.
const (
	commandStop = "STOP"
	commandJoin = "JOIN"

	stopRemovedText       = "You've been opted out."
	stopNotSubscribedText = "You were not subscribed."
	joinAddedText         = "You'll now receive updates from us."
	joinAlreadyText       = "You're already receiving updates."
)

// Inbound pipeline outcomes reported in InboundResult.
const (
	OutcomeDrafted    = "drafted"     // a reply draft was stored
	OutcomeSuppressed = "suppressed"  // dedup window suppressed the draft
	OutcomeHandedOver = "handed_over" // conversation is with a human, bot silent
	OutcomeNoResponse = "no_response" // no FAQ match and no fallback configured
	OutcomeCommand    = "command"     // STOP/JOIN was handled
)

// InboundText is one parsed inbound text message, after envelope extraction.
type InboundText struct {
	ToNumber   string // destination (business) number
	FromNumber string // sender phone number
	Text       string // message body
	ReceivedAt time.Time
}

// InboundResult reports what the pipeline did with an inbound message.
type InboundResult struct {
	ConversationID   string
	InboundMessageID string
	DraftMessageID   string
	Outcome          string
}

// InboundService runs the sequential inbound pipeline: route the destination
// number to a client, resolve the contact and open conversation, persist the
// inbound message, then decide on a reply. The stages are strictly ordered;
// each depends on the resolution of the one before it.
//
// The caller (webhook handler) always acknowledges the provider regardless of
// the error returned here, so putting the pipeline behind this service keeps
// soft-fail logging in one place.
type InboundService struct {
	Selector ResponseSelector
	Drafts   *DraftService
}

// HandleInbound executes the full pipeline for one inbound text.
func (s *InboundService) HandleInbound(ctx context.Context, db *gorm.DB, in InboundText) (*InboundResult, error) {
	text := strings.TrimSpace(in.Text)
	if in.ToNumber == "" || in.FromNumber == "" || text == "" {
		return nil, ErrInvalidInput
	}

	// Stage 1: route the destination number to its client.
	number, err := repo.GetNumberByDestination(ctx, db, in.ToNumber)
	if err != nil {
		log.Warn().Str("to", in.ToNumber).Msg("no registered number for destination")
		return nil, ErrUnknownNumber
	}
	client, err := repo.GetClient(ctx, db, number.ClientID)
	if err != nil {
		log.Error().Str("wa_number_id", number.ID).Msg("client missing for registered number")
		return nil, err
	}

	// Stage 2: resolve the contact. First message from a number opts it in.
	contact, created, err := repo.GetOrCreateContact(ctx, db, in.FromNumber)
	if err != nil {
		log.Warn().Err(err).Str("from", in.FromNumber).Msg("contact resolution failed")
		return nil, err
	}
	if created {
		log.Info().Str("contact_id", contact.ID).Msg("created contact")
	}

	// Stage 3: resolve the open conversation for this (number, contact) pair.
	conv, created, err := repo.GetOrCreateOpenConversation(ctx, db, client.ID, number.ID, contact.ID)
	if err != nil {
		log.Warn().Err(err).Msg("conversation resolution failed")
		return nil, err
	}
	if created {
		log.Info().Str("conversation_id", conv.ID).Msg("created conversation")
	} else {
		log.Debug().Str("conversation_id", conv.ID).Msg("reused conversation")
	}

	// Stage 4: persist the inbound message. Immutable from here on.
	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	inbound, err := repo.CreateInboundMessage(ctx, db, conv.ID, text, receivedAt)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("inbound message persistence failed")
		return nil, err
	}
	if err := repo.TouchLastMessageAt(ctx, db, conv.ID, inbound.StoredAt); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("last_message_at update failed")
	}

	res := &InboundResult{ConversationID: conv.ID, InboundMessageID: inbound.ID}

	// Stage 5: handover gate. A human owns this conversation; the bot is
	// silent no matter what the message says.
	if conv.Status == domain.ConversationHandedOver {
		log.Info().Str("conversation_id", conv.ID).Msg("bot suppressed, conversation handed over")
		res.Outcome = OutcomeHandedOver
		inboundOutcomes.WithLabelValues(res.Outcome).Inc()
		return res, nil
	}

	// Stage 6: opt-in commands. These bypass FAQ selection entirely but still
	// draft their confirmation through the draft service so idempotency and
	// dedup apply to them too.
	if reply, ok := s.handleCommand(ctx, db, strings.ToUpper(text), in.FromNumber); ok {
		res.Outcome = OutcomeCommand
		inboundOutcomes.WithLabelValues(res.Outcome).Inc()
		draft, err := s.Drafts.StoreDraft(ctx, db, conv.ID, inbound.ID, reply)
		if err != nil {
			return res, err
		}
		if draft != nil {
			res.DraftMessageID = draft.ID
		}
		return res, nil
	}

	// Stage 7: response selection.
	reply, ok, err := s.Selector.Select(ctx, db, client.ID, text)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("response selection failed")
		return res, err
	}
	if !ok {
		log.Info().Str("conversation_id", conv.ID).Msg("no response selected")
		res.Outcome = OutcomeNoResponse
		inboundOutcomes.WithLabelValues(res.Outcome).Inc()
		return res, nil
	}

	// Stage 8: delegate outbound creation. The draft service is the only
	// writer of outbound rows.
	draft, err := s.Drafts.StoreDraft(ctx, db, conv.ID, inbound.ID, reply)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("outbound draft creation failed")
		return res, err
	}
	if draft == nil {
		res.Outcome = OutcomeSuppressed
		inboundOutcomes.WithLabelValues(res.Outcome).Inc()
		return res, nil
	}
	res.DraftMessageID = draft.ID
	res.Outcome = OutcomeDrafted
	inboundOutcomes.WithLabelValues(res.Outcome).Inc()
	return res, nil
}

// handleCommand processes the STOP/JOIN opt-in commands. It returns the
// confirmation text and true when the message was a command.
func (s *InboundService) handleCommand(ctx context.Context, db *gorm.DB, upper, sender string) (string, bool) {
	switch upper {
	case commandStop:
		removed, err := repo.DeleteContactByNumber(ctx, db, sender)
		if err != nil {
			log.Warn().Err(err).Str("from", sender).Msg("opt-out failed")
			return stopNotSubscribedText, true
		}
		log.Info().Str("from", sender).Bool("removed", removed).Msg("contact opted out")
		if removed {
			return stopRemovedText, true
		}
		return stopNotSubscribedText, true
	case commandJoin:
		_, added, err := repo.GetOrCreateContact(ctx, db, sender)
		if err != nil {
			log.Warn().Err(err).Str("from", sender).Msg("opt-in failed")
			return joinAlreadyText, true
		}
		log.Info().Str("from", sender).Bool("added", added).Msg("contact opted in")
		if added {
			return joinAddedText, true
		}
		return joinAlreadyText, true
	}
	return "", false
}
