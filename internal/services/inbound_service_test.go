package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// newServiceDB opens a throwaway SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedTenant inserts an active client with one registered number.
func seedTenant(t *testing.T, db *gorm.DB, destination string) (*domain.Client, *domain.WhatsAppNumber) {
	t.Helper()
	now := time.Now().UTC()
	client := &domain.Client{
		ID:           uuid.NewString(),
		Name:         "Acme Stores",
		Status:       "active",
		TrialStartAt: now,
		TrialEndAt:   now.Add(30 * 24 * time.Hour),
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	number := &domain.WhatsAppNumber{
		ID:                uuid.NewString(),
		ClientID:          client.ID,
		DestinationNumber: destination,
		Status:            "active",
	}
	if err := db.Create(number).Error; err != nil {
		t.Fatalf("seed number: %v", err)
	}
	return client, number
}

// seedFaq inserts one active FAQ rule, backdated so creation order is stable.
func seedFaq(t *testing.T, db *gorm.DB, clientID, name, pattern, response string, age time.Duration) {
	t.Helper()
	item := &domain.FaqItem{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		Name:         name,
		MatchPattern: pattern,
		ResponseText: response,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Add(-age),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed faq %s: %v", name, err)
	}
}

func newInboundService(fallback string) *InboundService {
	return &InboundService{
		Selector: ResponseSelector{Fallback: fallback},
		Drafts:   NewDraftService(2 * time.Minute),
	}
}

func inbound(to, from, text string) InboundText {
	return InboundText{ToNumber: to, FromNumber: from, Text: text}
}

func TestHandleInbound_UnknownNumberRejected(t *testing.T) {
	db := newServiceDB(t)
	svc := newInboundService("fallback")

	_, err := svc.HandleInbound(context.Background(), db, inbound("27110000000", "27830000001", "hi"))
	if !errors.Is(err, ErrUnknownNumber) {
		t.Fatalf("err = %v, want ErrUnknownNumber", err)
	}
}

func TestHandleInbound_BlankFieldsRejected(t *testing.T) {
	db := newServiceDB(t)
	svc := newInboundService("fallback")

	for _, in := range []InboundText{
		{ToNumber: "", FromNumber: "27830000001", Text: "hi"},
		{ToNumber: "27110000000", FromNumber: "", Text: "hi"},
		{ToNumber: "27110000000", FromNumber: "27830000001", Text: "   "},
	} {
		if _, err := svc.HandleInbound(context.Background(), db, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("input %+v: err = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestHandleInbound_DraftsFaqReply(t *testing.T) {
	db := newServiceDB(t)
	client, number := seedTenant(t, db, "27110000000")
	seedFaq(t, db, client.ID, "hours", "opening hours", "We are open 9-5.", time.Hour)
	svc := newInboundService("fallback")

	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "What are your opening hours?"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Outcome != OutcomeDrafted {
		t.Fatalf("outcome = %q, want drafted", res.Outcome)
	}
	if res.ConversationID == "" || res.InboundMessageID == "" || res.DraftMessageID == "" {
		t.Fatalf("result missing ids: %+v", res)
	}

	draft, err := repo.GetMessage(context.Background(), db, res.DraftMessageID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.Text != "We are open 9-5." || draft.Direction != domain.DirectionOutbound {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.ProviderMessageID != DraftIdempotencyKey(res.InboundMessageID) {
		t.Fatalf("draft key = %q", draft.ProviderMessageID)
	}

	// First inbound message also opted the sender in.
	if _, err := repo.GetContactByNumber(context.Background(), db, "27830000001"); err != nil {
		t.Fatalf("contact not created: %v", err)
	}
}

func TestHandleInbound_FallbackWhenNoFaqMatches(t *testing.T) {
	db := newServiceDB(t)
	_, number := seedTenant(t, db, "27110000000")
	svc := newInboundService("Thanks, a human will get back to you.")

	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "something unrelated"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Outcome != OutcomeDrafted {
		t.Fatalf("outcome = %q, want drafted", res.Outcome)
	}
	draft, err := repo.GetMessage(context.Background(), db, res.DraftMessageID)
	if err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.Text != "Thanks, a human will get back to you." {
		t.Fatalf("draft text = %q", draft.Text)
	}
}

func TestHandleInbound_EmptyFallbackStaysSilent(t *testing.T) {
	db := newServiceDB(t)
	_, number := seedTenant(t, db, "27110000000")
	svc := newInboundService("")

	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "something unrelated"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Outcome != OutcomeNoResponse {
		t.Fatalf("outcome = %q, want no_response", res.Outcome)
	}
	if res.DraftMessageID != "" {
		t.Fatalf("no draft expected, got %q", res.DraftMessageID)
	}
	// Inbound message is still persisted even when the bot stays silent.
	if _, err := repo.GetMessage(context.Background(), db, res.InboundMessageID); err != nil {
		t.Fatalf("inbound message not persisted: %v", err)
	}

	n, err := repo.CountMessages(context.Background(), db, res.ConversationID, domain.DirectionOutbound)
	if err != nil {
		t.Fatalf("count outbound: %v", err)
	}
	if n != 0 {
		t.Fatalf("outbound count = %d, want 0", n)
	}
}

func TestHandleInbound_HandoverGateSilencesBot(t *testing.T) {
	db := newServiceDB(t)
	client, number := seedTenant(t, db, "27110000000")
	seedFaq(t, db, client.ID, "hours", "hours", "We are open 9-5.", time.Hour)
	svc := newInboundService("fallback")

	first, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours?"))
	if err != nil {
		t.Fatalf("first inbound: %v", err)
	}
	if err := repo.SetConversationStatus(context.Background(), db, first.ConversationID, domain.ConversationHandedOver); err != nil {
		t.Fatalf("hand over: %v", err)
	}

	second, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours?"))
	if err != nil {
		t.Fatalf("second inbound: %v", err)
	}
	if second.Outcome != OutcomeHandedOver {
		t.Fatalf("outcome = %q, want handed_over", second.Outcome)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("expected same conversation, got %q vs %q", second.ConversationID, first.ConversationID)
	}
	if second.DraftMessageID != "" {
		t.Fatalf("handed-over conversation must not get a draft")
	}
	// The inbound message is still recorded for the human agent.
	if _, err := repo.GetMessage(context.Background(), db, second.InboundMessageID); err != nil {
		t.Fatalf("inbound not persisted behind the gate: %v", err)
	}
}

func TestHandleInbound_DuplicateTextSuppressed(t *testing.T) {
	db := newServiceDB(t)
	client, number := seedTenant(t, db, "27110000000")
	seedFaq(t, db, client.ID, "hours", "hours", "We are open 9-5.", time.Hour)
	svc := newInboundService("fallback")

	first, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours please"))
	if err != nil {
		t.Fatalf("first inbound: %v", err)
	}
	if first.Outcome != OutcomeDrafted {
		t.Fatalf("first outcome = %q", first.Outcome)
	}

	// A distinct inbound message arriving right after produces the identical
	// reply text, which the dedup window suppresses.
	second, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours again please"))
	if err != nil {
		t.Fatalf("second inbound: %v", err)
	}
	if second.Outcome != OutcomeSuppressed {
		t.Fatalf("second outcome = %q, want suppressed", second.Outcome)
	}
	if second.DraftMessageID != "" {
		t.Fatalf("suppressed inbound must not report a draft id")
	}

	n, err := repo.CountMessages(context.Background(), db, first.ConversationID, domain.DirectionOutbound)
	if err != nil {
		t.Fatalf("count outbound: %v", err)
	}
	if n != 1 {
		t.Fatalf("outbound count = %d, want 1", n)
	}
}

func TestHandleInbound_StopCommandOptsOut(t *testing.T) {
	db := newServiceDB(t)
	_, number := seedTenant(t, db, "27110000000")
	svc := newInboundService("fallback")

	// First contact, then opt out.
	if _, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hello")); err != nil {
		t.Fatalf("seed inbound: %v", err)
	}

	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "stop"))
	if err != nil {
		t.Fatalf("stop inbound: %v", err)
	}
	if res.Outcome != OutcomeCommand {
		t.Fatalf("outcome = %q, want command", res.Outcome)
	}
	if _, err := repo.GetContactByNumber(context.Background(), db, "27830000001"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("contact should be deleted, err = %v", err)
	}

	draft, err := repo.GetMessage(context.Background(), db, res.DraftMessageID)
	if err != nil {
		t.Fatalf("load confirmation: %v", err)
	}
	if draft.Text != stopRemovedText {
		t.Fatalf("confirmation = %q, want %q", draft.Text, stopRemovedText)
	}
}

func TestHandleInbound_StopWhenNotSubscribed(t *testing.T) {
	db := newServiceDB(t)
	_, number := seedTenant(t, db, "27110000000")
	svc := newInboundService("fallback")

	// The inbound pipeline re-creates the contact row at stage 2, then STOP
	// removes it again, so the sender ends the exchange unsubscribed but the
	// confirmation still reflects the delete.
	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000002", "STOP"))
	if err != nil {
		t.Fatalf("stop inbound: %v", err)
	}
	if res.Outcome != OutcomeCommand {
		t.Fatalf("outcome = %q, want command", res.Outcome)
	}
	if _, err := repo.GetContactByNumber(context.Background(), db, "27830000002"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("contact should not remain, err = %v", err)
	}
}

func TestHandleInbound_JoinCommandConfirms(t *testing.T) {
	db := newServiceDB(t)
	_, number := seedTenant(t, db, "27110000000")
	svc := newInboundService("fallback")

	res, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000003", "join"))
	if err != nil {
		t.Fatalf("join inbound: %v", err)
	}
	if res.Outcome != OutcomeCommand {
		t.Fatalf("outcome = %q, want command", res.Outcome)
	}
	// Stage 2 already created the contact, so JOIN reports an existing
	// subscription.
	draft, err := repo.GetMessage(context.Background(), db, res.DraftMessageID)
	if err != nil {
		t.Fatalf("load confirmation: %v", err)
	}
	if draft.Text != joinAlreadyText {
		t.Fatalf("confirmation = %q, want %q", draft.Text, joinAlreadyText)
	}
	if _, err := repo.GetContactByNumber(context.Background(), db, "27830000003"); err != nil {
		t.Fatalf("contact missing after join: %v", err)
	}
}

func TestHandleInbound_WebhookRedeliveryIdempotent(t *testing.T) {
	db := newServiceDB(t)
	client, number := seedTenant(t, db, "27110000000")
	seedFaq(t, db, client.ID, "hours", "hours", "We are open 9-5.", time.Hour)
	svc := newInboundService("fallback")

	first, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours?"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	// Redelivery stores a second inbound row, but the draft for the first
	// inbound message is never duplicated: the dedup window suppresses the
	// identical reply.
	again, err := svc.HandleInbound(context.Background(), db, inbound(number.DestinationNumber, "27830000001", "hours?"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if again.Outcome != OutcomeSuppressed {
		t.Fatalf("redelivery outcome = %q", again.Outcome)
	}

	n, err := repo.CountMessages(context.Background(), db, first.ConversationID, domain.DirectionOutbound)
	if err != nil {
		t.Fatalf("count outbound: %v", err)
	}
	if n != 1 {
		t.Fatalf("outbound count = %d, want 1", n)
	}
}
