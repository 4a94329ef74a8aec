package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/klresolute/whatsapp-backend/internal/domain"
	"github.com/klresolute/whatsapp-backend/internal/repo"
)

// ResponseSelector picks the automated reply for an inbound message.
//
// Selection is deterministic: the active FAQ items for the client are scanned
// in creation order and the first whose match pattern appears as a case-insensitive
// substring of the inbound text wins. If nothing matches, Fallback is used.
// An empty Fallback means "stay silent": no reply is produced at all.
type ResponseSelector struct {
	Fallback string
}

// Select returns the reply text for the given inbound text, or ok=false when
// the engine should not reply (no match and no fallback configured).
func (s ResponseSelector) Select(ctx context.Context, db *gorm.DB, clientID, text string) (string, bool, error) {
	faqs, err := repo.ListActiveFaqs(ctx, db, clientID)
	if err != nil {
		return "", false, err
	}
	if reply, ok := matchFaq(faqs, text); ok {
		return reply, true, nil
	}
	if strings.TrimSpace(s.Fallback) == "" {
		return "", false, nil
	}
	return s.Fallback, true, nil
}

// matchFaq returns the response of the first FAQ whose pattern occurs in
// text. Comparison is case-insensitive; items with blank patterns are skipped.
func matchFaq(faqs []domain.FaqItem, text string) (string, bool) {
	haystack := strings.ToLower(text)
	for _, f := range faqs {
		pattern := strings.ToLower(strings.TrimSpace(f.MatchPattern))
		if pattern == "" {
			continue
		}
		if strings.Contains(haystack, pattern) {
			return f.ResponseText, true
		}
	}
	return "", false
}
