// Package domain defines the persistence models for the WhatsApp automation
// backend: tenants, registered numbers, contacts, conversations, messages,
// and the delivery audit trail. These types are mapped with GORM and form
// the core data layer of the application.
package domain

import (
	"time"
)

// Conversation status values.
const (
	ConversationAutomated  = "automated"
	ConversationHandedOver = "handed_over"
	ConversationClosed     = "closed"
)

// Message direction values.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Client represents a tenant business. Clients are provisioned externally;
// the inbound pipeline only reads them to route webhooks.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: tenant display name.
//   - Status: "active" or "inactive" (enforced by DB constraint).
//   - TrialStartAt / TrialEndAt: trial window boundaries.
type Client struct {
	ID           string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"           gorm:"type:text;not null"`
	Status       string    `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('active','inactive')"`
	TrialStartAt time.Time `json:"trial_start_at"`
	TrialEndAt   time.Time `json:"trial_end_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// WhatsAppNumber is a tenant's provider-registered sending number. Inbound
// webhooks are routed to a client by looking up the destination number here.
// Read-only to the pipeline.
type WhatsAppNumber struct {
	ID                string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	ClientID          string    `json:"client_id"          gorm:"type:char(36);not null;index"`
	DestinationNumber string    `json:"destination_number" gorm:"type:varchar(32);not null;uniqueIndex:ux_numbers_destination"`
	Status            string    `json:"status"             gorm:"type:varchar(16);not null;check:status IN ('active','inactive')"`
	CreatedAt         time.Time `json:"created_at"`

	// Client is the owning tenant.
	Client Client `json:"-" gorm:"foreignKey:ClientID;references:ID"`
}

// TableName returns the database table name for WhatsAppNumber.
func (WhatsAppNumber) TableName() string { return "whatsapp_numbers" }

// Contact is a global end-user phone number. A contact row's existence is the
// opt-in signal: creating it opts the number in, deleting it opts the number
// out. There is no separate flag.
//
// ContactNumber carries a unique index; concurrent creation for the same
// number must surface as a duplicate-key violation and be handled by
// re-reading the row the racing writer created.
type Contact struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ContactNumber string    `json:"contact_number" gorm:"type:varchar(32);not null;uniqueIndex:ux_contacts_number"`
	DisplayName   string    `json:"display_name"   gorm:"type:varchar(255)"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// Conversation is the thread between one WhatsAppNumber and one Contact.
//
// Invariant: at most one conversation per (wa_number_id, contact_id) pair may
// have closed_at NULL at any time. SQLite cannot express that through GORM
// tags, so repo.AutoMigrate creates the partial unique index with raw SQL.
//
// Status transitions: conversations start "automated"; an explicit admin
// action moves them to "handed_over", after which the bot must never reply.
type Conversation struct {
	ID            string     `json:"id"              gorm:"type:char(36);primaryKey"`
	ClientID      string     `json:"client_id"       gorm:"type:char(36);not null;index"`
	WaNumberID    string     `json:"wa_number_id"    gorm:"type:char(36);not null;index:idx_conversations_pair,priority:1"`
	ContactID     string     `json:"contact_id"      gorm:"type:char(36);not null;index:idx_conversations_pair,priority:2"`
	Status        string     `json:"status"          gorm:"type:varchar(16);not null;default:'automated';check:status IN ('automated','handed_over','closed')"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at"`

	Client         Client         `json:"-" gorm:"foreignKey:ClientID;references:ID"`
	WhatsAppNumber WhatsAppNumber `json:"-" gorm:"foreignKey:WaNumberID;references:ID"`
	Contact        Contact        `json:"-" gorm:"foreignKey:ContactID;references:ID"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Open reports whether the conversation is still open (not closed).
func (c Conversation) Open() bool { return c.ClosedAt == nil }

// Message is an immutable inbound or outbound utterance. Text and direction
// never change after insert; the only permitted mutation is the delivery
// engine stamping SentAt on outbound rows.
//
// ProviderMessageID doubles as the idempotency key for outbound drafts
// ("parent_inbound:<inbound message id>"), so duplicate webhook delivery for
// the same inbound event can never produce a second draft.
type Message struct {
	ID                string     `json:"id"                  gorm:"type:char(36);primaryKey"`
	ConversationID    string     `json:"conversation_id"     gorm:"type:char(36);not null;index:idx_messages_conversation,priority:1"`
	Direction         string     `json:"direction"           gorm:"type:varchar(16);not null;check:direction IN ('inbound','outbound')"`
	Text              string     `json:"text"                gorm:"column:message_text;type:text;not null"`
	ProviderMessageID string     `json:"provider_message_id" gorm:"type:text;index"`
	ReceivedAt        *time.Time `json:"received_at"`
	SentAt            *time.Time `json:"sent_at"`
	StoredAt          time.Time  `json:"stored_at"           gorm:"index:idx_messages_conversation,priority:2"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// DeliveryEvent event types. Attempt-kind events count against the retry cap;
// retry_exhausted is appended exactly once when the cap is reached.
const (
	EventDryRunAttempt  = "dry_run_attempt"
	EventRetryAttempt   = "retry_attempt"
	EventRetryExhausted = "retry_exhausted"
)

// AttemptEventTypes lists the event types that count as delivery attempts.
var AttemptEventTypes = []string{EventDryRunAttempt, EventRetryAttempt}

// DeliveryEvent is an append-only audit record tied to an outbound Message.
// The delivery engine derives every retry decision purely from these rows;
// there is no mutable attempt counter that could drift from the audit trail.
type DeliveryEvent struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;index:idx_delivery_events_message"`
	EventType string    `json:"event_type" gorm:"type:varchar(32);not null"`
	Detail    string    `json:"detail"     gorm:"column:event_detail;type:text"`
	CreatedAt time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID"`
}

// TableName returns the database table name for DeliveryEvent.
func (DeliveryEvent) TableName() string { return "delivery_events" }

// FaqItem is a per-client keyword rule: when MatchPattern appears in an
// inbound text (case-insensitive substring), ResponseText is the reply.
// Managed by the admin collaborator; read-only to the pipeline.
type FaqItem struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ClientID     string    `json:"client_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_faq_client_name,priority:1"`
	Name         string    `json:"name"          gorm:"column:faq_name;type:varchar(255);not null;uniqueIndex:ux_faq_client_name,priority:2"`
	MatchPattern string    `json:"match_pattern" gorm:"type:text;not null"`
	ResponseText string    `json:"response_text" gorm:"type:text;not null"`
	IsActive     bool      `json:"is_active"     gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`

	Client Client `json:"-" gorm:"foreignKey:ClientID;references:ID"`
}

// TableName returns the database table name for FaqItem.
func (FaqItem) TableName() string { return "faq_items" }
