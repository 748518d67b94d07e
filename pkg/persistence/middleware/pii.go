package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/ports"
)

// Mask replaces redacted text.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks what the speaker said before a snapshot is stored.
// Matches of the patterns in user messages and pending items are replaced by Mask.
// Without patterns every user utterance is masked whole.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.StateStore) ports.StateStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	// The engine keeps using state, so redact a copy.
	cloned := state.Snapshot()
	for i, msg := range cloned.Context.History {
		if msg.Role == domain.RoleUser {
			cloned.Context.History[i].Content = m.redact(msg.Content)
		}
	}
	if len(m.patterns) > 0 {
		for i, item := range cloned.Context.PendingItems {
			cloned.Context.PendingItems[i].Value = m.redact(item.Value)
		}
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactionMiddleware) redact(s string) string {
	if len(m.patterns) == 0 {
		if s == "" {
			return s
		}
		return Mask
	}
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
