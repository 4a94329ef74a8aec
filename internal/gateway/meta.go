package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MetaConfig configures the Meta WhatsApp Cloud API gateway.
//
// Safety posture: Enabled must be set explicitly, and when TestAllowlist is
// non-empty only listed recipients can receive real sends. Any
// misconfiguration fails safely (typed receipt, no send).
type MetaConfig struct {
	Enabled       bool
	AccessToken   string
	PhoneNumberID string
	APIBaseURL    string
	TestAllowlist []string
	Timeout       time.Duration
}

// MetaGateway sends text messages through the Meta Graph API
// (POST /{phone_number_id}/messages). Minimal payload: text messages only.
type MetaGateway struct {
	cfg    MetaConfig
	client *http.Client
}

// NewMetaGateway constructs a MetaGateway with a seconds-scale HTTP timeout
// so a hung provider call surfaces as a failed receipt, never a stuck run.
func NewMetaGateway(cfg MetaConfig) *MetaGateway {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://graph.facebook.com/v23.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &MetaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// metaTextPayload is the request body for a Cloud API text message.
type metaTextPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             metaTextBody `json:"text"`
}

type metaTextBody struct {
	Body string `json:"body"`
}

// metaSendResponse captures the id from a typical success response:
// {"messages":[{"id":"wamid...."}]}.
type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message via the Cloud API, mapping every guard or
// provider failure to a typed receipt.
func (g *MetaGateway) SendText(ctx context.Context, req SendRequest) Receipt {
	// Safety lock: must be enabled explicitly.
	if !g.cfg.Enabled {
		return NewReceipt(StatusDisabled, "meta gateway disabled, no message sent", "")
	}

	// Allow-list safety: when configured, only listed recipients may receive.
	if len(g.cfg.TestAllowlist) > 0 && !g.allowed(req.ToNumber) {
		return NewReceipt(StatusDisabled,
			fmt.Sprintf("recipient not in outbound allowlist, no message sent. to=%s", req.ToNumber), "")
	}

	if g.cfg.AccessToken == "" || g.cfg.PhoneNumberID == "" {
		return NewReceipt(StatusFailed,
			"meta gateway enabled but missing access token and/or phone number id, no message sent", "")
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(g.cfg.APIBaseURL, "/"), g.cfg.PhoneNumberID)
	payload := metaTextPayload{
		MessagingProduct: "whatsapp",
		To:               req.ToNumber,
		Type:             "text",
		Text:             metaTextBody{Body: req.BodyText},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return NewReceipt(StatusFailed, fmt.Sprintf("meta send failed: %v", err), "")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewReceipt(StatusFailed, fmt.Sprintf("meta send failed: %v", err), "")
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Covers timeouts and transport errors: treated as failed for audit.
		return NewReceipt(StatusFailed, fmt.Sprintf("meta send failed: %v", err), "")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return NewReceipt(StatusFailed,
			fmt.Sprintf("meta HTTP %d: %s", resp.StatusCode, string(raw)), "")
	}

	var parsed metaSendResponse
	providerID := ""
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Messages) > 0 {
		providerID = parsed.Messages[0].ID
	}

	return NewReceipt(StatusSent, "sent via Meta Cloud API", providerID)
}

func (g *MetaGateway) allowed(to string) bool {
	for _, n := range g.cfg.TestAllowlist {
		if strings.TrimSpace(n) == to {
			return true
		}
	}
	return false
}
