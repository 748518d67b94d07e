package runtime

import (
	"context"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// step accumulates the effects of processing one event.
type step struct {
	ctx     context.Context
	engine  *Engine
	chart   *chart
	state   *domain.State
	actions []domain.ActionRequest
}

func (s *step) emit(a domain.ActionRequest) {
	s.actions = append(s.actions, a)
}

func (s *step) speak(text string) {
	s.emit(domain.ActionRequest{Type: domain.ActionSpeak, Payload: text})
}

func (s *step) listen() {
	s.emit(domain.ActionRequest{Type: domain.ActionListen})
}

// runTask starts the only outstanding task of the session.
func (s *step) runTask(req domain.TaskRequest) {
	req.ID = s.engine.newID()
	s.state.PendingTask = req.ID
	s.emit(domain.ActionRequest{Type: domain.ActionRunTask, Payload: req})
}

// take runs a matched rule: exit, transition action, entry.
func (s *step) take(r rule, ev domain.Event) {
	if r.stays() {
		if r.action.fn != nil {
			r.action.fn(s, ev)
		}
		return
	}

	from := s.state.Location
	common, hasCommon := commonAncestor(from, r.to)
	for cur, ok := from, true; ok; cur, ok = cur.Parent() {
		if hasCommon && cur == common {
			break
		}
		s.engine.emitStateLeave(s.ctx, s.state, cur)
	}

	if r.action.fn != nil {
		r.action.fn(s, ev)
	}

	var path []domain.Location
	for cur, ok := r.to, true; ok; cur, ok = cur.Parent() {
		if hasCommon && cur == common {
			break
		}
		path = append([]domain.Location{cur}, path...)
	}
	for _, loc := range path[:len(path)-1] {
		s.state.Location = loc
		s.engine.emitStateEnter(s.ctx, s.state, loc)
		s.runEntry(loc)
	}
	s.enterFrom(r.to)
}

// enterFrom enters loc and then its initial children.
func (s *step) enterFrom(loc domain.Location) {
	for {
		s.state.Location = loc
		s.engine.emitStateEnter(s.ctx, s.state, loc)
		s.runEntry(loc)
		child, ok := s.chart.initial[loc]
		if !ok {
			return
		}
		loc = child
	}
}

func (s *step) runEntry(loc domain.Location) {
	if fn, ok := s.chart.entry[loc]; ok {
		fn(s)
	}
}

// settle follows eventless transitions of the active state until none applies.
// Guards are evaluated in declaration order; the first one that holds wins.
func (s *step) settle() error {
	for depth := 0; ; depth++ {
		r, ok := s.chart.eventless(s.state)
		if !ok {
			return nil
		}
		if depth >= maxSettleDepth {
			return &domain.GuardLoopError{State: s.state.Path(), Depth: depth}
		}
		s.take(r, domain.Event{})
	}
}

// commonAncestor returns the deepest strict ancestor of target that also contains from.
// Targeting an ancestor of the active state therefore exits and re-enters it.
func commonAncestor(from, target domain.Location) (domain.Location, bool) {
	for cur, ok := target.Parent(); ok; cur, ok = cur.Parent() {
		if from.Within(cur) {
			return cur, true
		}
	}
	return domain.Location{}, false
}
