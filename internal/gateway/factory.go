package gateway

import "strings"

// Settings selects and configures the gateway implementation. One place
// decides which gateway runs; the default must remain dry-run so nothing is
// ever sent without explicit opt-in.
//
// Modes:
//   - "dry_run"  (default): simulate every send
//   - "disabled": a Meta gateway with the safety lock engaged
//   - "meta":     real sending, still guarded by the enable flag + allowlist
type Settings struct {
	Mode string
	Meta MetaConfig
}

// Build returns the gateway for the configured mode. Unknown modes fall back
// to dry-run.
func Build(s Settings) SendGateway {
	switch strings.ToLower(strings.TrimSpace(s.Mode)) {
	case "disabled":
		cfg := s.Meta
		cfg.Enabled = false
		return NewMetaGateway(cfg)
	case "meta":
		return NewMetaGateway(s.Meta)
	default:
		return DryRunGateway{}
	}
}
