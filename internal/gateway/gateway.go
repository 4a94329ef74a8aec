// Package gateway defines the outbound delivery boundary: a stable
// SendGateway interface with typed request/receipt values, a dry-run
// implementation that never touches the network, and a guarded Meta Cloud
// API implementation that refuses to send unless explicitly enabled.
//
// Guardrails:
//   - The webhook pipeline never calls a gateway directly; only the delivery
//     engine does.
//   - SendText must not return an error for ordinary failure modes (missing
//     credentials, recipient not allow-listed, provider HTTP error): every
//     such case maps to a typed receipt so the engine can always record an
//     audit event.
package gateway

import (
	"context"
	"time"
)

// Status classifies the outcome of a delivery attempt.
type Status string

const (
	StatusDryRun   Status = "dry_run"
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// SendRequest describes one attempt to deliver a specific outbound message.
//
// MessageID and ConversationID exist for traceability; ToNumber is E.164
// without a leading plus (e.g. "27820000001"); BodyText is the exact text
// that would be delivered.
type SendRequest struct {
	MessageID      string
	ConversationID string
	ContactID      string
	ToNumber       string
	BodyText       string

	// Optional metadata.
	FromNumber string
	ClientID   string
}

// Receipt is the result of a delivery attempt (or simulated attempt).
type Receipt struct {
	Status            Status
	ProviderMessageID string
	Detail            string
	CreatedAt         time.Time
}

// NewReceipt builds a Receipt stamped with the current UTC time.
func NewReceipt(status Status, detail, providerMessageID string) Receipt {
	return Receipt{
		Status:            status,
		ProviderMessageID: providerMessageID,
		Detail:            detail,
		CreatedAt:         time.Now().UTC(),
	}
}

// SendGateway delivers a WhatsApp text message, or simulates doing so.
// Implementations must be fast, honor the context for cancellation, and
// return an error only for programming mistakes, never for ordinary
// delivery failures.
type SendGateway interface {
	SendText(ctx context.Context, req SendRequest) Receipt
}
