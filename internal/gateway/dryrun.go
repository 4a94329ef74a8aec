package gateway

import (
	"context"
	"fmt"
)

// DryRunGateway is the default gateway: it performs no side effects, calls no
// external service, and always returns a simulated-send receipt.
type DryRunGateway struct{}

// SendText simulates a delivery and reports what would have been sent.
func (DryRunGateway) SendText(_ context.Context, req SendRequest) Receipt {
	detail := fmt.Sprintf(
		"DRY_RUN: outbound delivery simulated (not sent). to=%s message_id=%s",
		req.ToNumber, req.MessageID,
	)
	return NewReceipt(StatusDryRun, detail, "")
}
