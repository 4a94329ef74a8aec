package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/http/middleware"
	"github.com/klresolute/whatsapp-backend/internal/services"
)

// WebhookPayload mirrors the Meta Cloud API webhook envelope, reduced to the
// fields the pipeline consumes.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one entry in the webhook envelope.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange wraps a single value change notification.
type WebhookChange struct {
	Value WebhookValue `json:"value"`
	Field string       `json:"field"`
}

// WebhookValue carries routing metadata and the inbound messages.
type WebhookValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []WebhookMessage `json:"messages,omitempty"`
}

// WebhookMessage is one inbound message in the envelope. Only text messages
// are processed; other types are acknowledged and skipped.
type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// WebhookHandler exposes the provider-facing webhook endpoints.
type WebhookHandler struct {
	DB          *gorm.DB
	Inbound     *services.InboundService
	VerifyToken string
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(db *gorm.DB, inbound *services.InboundService, verifyToken string) *WebhookHandler {
	return &WebhookHandler{DB: db, Inbound: inbound, VerifyToken: verifyToken}
}

// Verify handles the GET subscription handshake: when hub.mode is "subscribe"
// and hub.verify_token matches, the raw hub.challenge is echoed back.
//
// @Summary      Verify webhook subscription
// @Tags         webhooks
// @Produce      plain
// @Param        hub.mode          query string true "subscribe"
// @Param        hub.verify_token  query string true "shared verify token"
// @Param        hub.challenge     query string true "challenge to echo"
// @Success      200 {string} string "challenge"
// @Failure      403 {object} ErrorResponse
// @Router       /webhooks/whatsapp [get]
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing verification parameters")
		return
	}
	if mode != "subscribe" || token != h.VerifyToken {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive handles the POST webhook. It always acknowledges with HTTP 200:
// the provider retries non-2xx responses, and a retry of a payload we cannot
// process would never succeed either. Failures are logged, not surfaced.
//
// @Summary      Receive inbound WhatsApp messages
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]any
// @Router       /webhooks/whatsapp [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		lg.Warn().Err(err).Msg("webhook payload is not valid JSON")
		ok(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	processed := 0
	for _, in := range extractInboundTexts(payload) {
		if _, err := h.Inbound.HandleInbound(c.Request.Context(), h.DB, in); err != nil {
			lg.Warn().Err(err).Str("to", in.ToNumber).Msg("inbound pipeline did not complete")
			continue
		}
		processed++
	}

	ok(c, http.StatusOK, gin.H{"status": "received", "processed": processed})
}

// extractInboundTexts flattens the envelope into pipeline inputs, keeping
// text messages only. Meta batches messages per entry/change, so one request
// may yield several.
func extractInboundTexts(p WebhookPayload) []services.InboundText {
	var out []services.InboundText
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			to := change.Value.Metadata.DisplayPhoneNumber
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				out = append(out, services.InboundText{
					ToNumber:   to,
					FromNumber: msg.From,
					Text:       msg.Text.Body,
					ReceivedAt: parseWebhookTimestamp(msg.Timestamp),
				})
			}
		}
	}
	return out
}

// parseWebhookTimestamp converts Meta's unix-seconds string; zero on failure
// (the pipeline then falls back to arrival time).
func parseWebhookTimestamp(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
