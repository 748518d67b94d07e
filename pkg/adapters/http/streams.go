package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/runner"
)

// Stream event names.
const (
	EventDiff      = "diff"
	EventDirective = "directive"
)

// streamBuffer is the per-subscriber backlog before messages are dropped.
const streamBuffer = 10

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte

	// diff is kept decoded so watch filters need not parse Data again.
	diff *domain.StateDiff
}

// StreamManager fans session updates out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Frame]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan Frame]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for sessionID. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Frame, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Frame, streamBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan Frame]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		subs, ok := sm.subscribers[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(sm.subscribers, sessionID)
		}
	}
}

// Broadcast delivers f to every subscriber of sessionID. Slow subscribers lose messages.
func (sm *StreamManager) Broadcast(sessionID string, f Frame) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- f:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID, "event", f.Event)
		}
	}
}

// End closes every subscription of sessionID.
func (sm *StreamManager) End(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for ch := range sm.subscribers[sessionID] {
		close(ch)
	}
	delete(sm.subscribers, sessionID)
}

// ObserveCommit is a session.CommitObserver that streams state diffs.
func (sm *StreamManager) ObserveCommit(sessionID string, c runner.Commit) {
	if c.Diff == nil {
		return
	}
	data, err := json.Marshal(c.Diff)
	if err != nil {
		sm.logger.Error("SSE: failed to encode diff", "session_id", sessionID, "err", err)
		return
	}
	sm.Broadcast(sessionID, Frame{Event: EventDiff, Data: data, diff: c.Diff})
}

// ObserveDirective is a session.DirectiveObserver that streams speech directives.
func (sm *StreamManager) ObserveDirective(sessionID string, d speech.Directive) {
	data, err := json.Marshal(d)
	if err != nil {
		sm.logger.Error("SSE: failed to encode directive", "session_id", sessionID, "err", err)
		return
	}
	sm.Broadcast(sessionID, Frame{Event: EventDirective, Data: data})
}

// matches applies a watch filter. An empty filter keeps everything.
func (f Frame) matches(watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch field {
		case "directives":
			if f.Event == EventDirective {
				return true
			}
		case "location":
			if f.diff != nil && (f.diff.Location != nil || f.diff.Cycle != nil) {
				return true
			}
		case "history":
			if f.diff != nil && f.diff.History != nil {
				return true
			}
		case "context":
			if f.diff != nil && (f.diff.SilenceCount != nil || f.diff.LastResult != nil ||
				f.diff.Pending != nil || f.diff.Options != nil) {
				return true
			}
		case "task":
			if f.diff != nil && f.diff.PendingTask != nil {
				return true
			}
		}
	}
	return false
}
