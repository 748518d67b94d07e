package runtime

import (
	"fmt"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// guard is a named, side-effect free condition.
type guard struct {
	name string
	test func(*domain.State, domain.Event) bool
}

// action is a named transition action.
type action struct {
	name string
	fn   func(*step, domain.Event)
}

// rule is a single transition. An empty event marks an eventless rule;
// a zero target marks a rule that acts without leaving the state.
type rule struct {
	event  domain.EventType
	guard  guard
	to     domain.Location
	action action
}

func on(ev domain.EventType) rule { return rule{event: ev} }
func always() rule                { return rule{} }

func (r rule) goTo(loc domain.Location) rule { r.to = loc; return r }
func (r rule) when(g guard) rule             { r.guard = g; return r }
func (r rule) do(a action) rule              { r.action = a; return r }

func (r rule) stays() bool { return r.to == domain.Location{} }

func (r rule) allows(s *domain.State, ev domain.Event) bool {
	return r.guard.test == nil || r.guard.test(s, ev)
}

// chart is the transition table of one dialogue variant.
type chart struct {
	variant domain.Variant
	order   []domain.Location
	rules   map[domain.Location][]rule
	entry   map[domain.Location]func(*step)
	initial map[domain.Location]domain.Location
}

func newChart(v domain.Variant) *chart {
	return &chart{
		variant: v,
		rules:   make(map[domain.Location][]rule),
		entry:   make(map[domain.Location]func(*step)),
		initial: make(map[domain.Location]domain.Location),
	}
}

func (c *chart) state(loc domain.Location, entry func(*step), rules ...rule) {
	c.order = append(c.order, loc)
	if entry != nil {
		c.entry[loc] = entry
	}
	c.rules[loc] = append(c.rules[loc], rules...)
}

// match finds the first enabled rule for ev, searching the active state and then its ancestors.
func (c *chart) match(s *domain.State, ev domain.Event) (rule, bool) {
	for cur, ok := s.Location, true; ok; cur, ok = cur.Parent() {
		for _, r := range c.rules[cur] {
			if r.event == ev.Type && r.allows(s, ev) {
				return r, true
			}
		}
	}
	return rule{}, false
}

func (c *chart) eventless(s *domain.State) (rule, bool) {
	for _, r := range c.rules[s.Location] {
		if r.event == "" && r.allows(s, domain.Event{}) {
			return r, true
		}
	}
	return rule{}, false
}

func (c *chart) nodes() []domain.StateNode {
	nodes := make([]domain.StateNode, 0, len(c.order))
	for _, loc := range c.order {
		node := domain.StateNode{ID: loc.String(), Kind: c.kind(loc)}
		if child, ok := c.initial[loc]; ok {
			node.Initial = child.String()
		}
		for _, r := range c.rules[loc] {
			t := domain.Transition{From: loc.String(), Event: r.event, Guard: r.guard.name}
			if !r.stays() {
				t.To = r.to.String()
			}
			node.Transitions = append(node.Transitions, t)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func (c *chart) kind(loc domain.Location) string {
	if _, ok := c.initial[loc]; ok {
		return domain.StateKindComposite
	}
	switch loc {
	case domain.AtWaitToStart, domain.AtDone, domain.AtClosing:
		return domain.StateKindIdle
	case domain.AtFetchOptions, domain.AtInterpret, domain.AtFetchAttitude:
		return domain.StateKindTask
	}
	for _, r := range c.rules[loc] {
		if r.event == "" {
			return domain.StateKindTransient
		}
	}
	return domain.StateKindAtomic
}

// buildChart declares the dialogue. Both variants share everything up to Respond.
func (e *Engine) buildChart(v domain.Variant) *chart {
	c := newChart(v)
	c.initial[domain.AtPrompting] = domain.AtFetchOptions
	c.initial[domain.AtNoInput] = domain.AtNoInputChoice

	c.state(domain.AtPrepare, e.prepare,
		on(domain.EventReady).goTo(domain.AtWaitToStart))
	c.state(domain.AtWaitToStart, nil,
		on(domain.EventStart).goTo(domain.AtPrompting).do(e.resetTurn()))
	c.state(domain.AtPrompting, nil,
		on(domain.EventStart).goTo(domain.AtPrompting).do(e.resetTurn()))

	fetchFailed := on(domain.EventTaskFailed).do(e.logFailure("could not fetch options"))
	if e.recover {
		fetchFailed = fetchFailed.goTo(domain.AtPrompt)
	}
	c.state(domain.AtFetchOptions, e.fetchOptions,
		on(domain.EventTaskDone).goTo(domain.AtPrompt).do(storeOptions),
		fetchFailed)

	c.state(domain.AtPrompt, e.greet,
		on(domain.EventSpeakComplete).goTo(domain.AtListen))

	listen := []rule{
		on(domain.EventNoInput).goTo(domain.AtNoInput).do(countSilence),
		on(domain.EventRecognized).goTo(domain.AtInterpret).do(recordUtterance),
	}
	if v == domain.VariantChat {
		listen = append(listen, on(domain.EventSpeakComplete).goTo(domain.AtDone))
	}
	c.state(domain.AtListen, (*step).listenEntry, listen...)

	c.state(domain.AtNoInput, nil,
		on(domain.EventSpeakComplete).goTo(domain.AtListen))
	c.state(domain.AtNoInputChoice, nil,
		always().when(e.silenceExceeded()).goTo(domain.AtNoInputTerminate),
		always().goTo(domain.AtNoInputRetry))
	c.state(domain.AtNoInputRetry, func(s *step) { s.speak(RetryPrompt) })
	c.state(domain.AtNoInputTerminate, func(s *step) { s.speak(Farewell(s.state.Context.SilenceCount)) },
		on(domain.EventSpeakComplete).goTo(domain.AtDone))

	c.state(domain.AtInterpret, e.interpretEntry,
		on(domain.EventTaskDone).goTo(domain.AtRespond).do(e.interpretResult()),
		e.completionFailed())

	c.state(domain.AtRespond, func(s *step) { s.speak(s.state.Context.LastResultText()) })

	if v == domain.VariantChat {
		c.rules[domain.AtRespond] = append(c.rules[domain.AtRespond],
			on(domain.EventSpeakComplete).goTo(domain.AtListen))
	} else {
		c.rules[domain.AtRespond] = append(c.rules[domain.AtRespond],
			on(domain.EventSpeakComplete).goTo(domain.AtCheckState))

		c.state(domain.AtCheckState, nil,
			always().when(hasPendingItems).goTo(domain.AtConfirm),
			always().goTo(domain.AtPrompt))
		c.state(domain.AtConfirm, func(s *step) { s.speak(ConfirmQuestion(s.state.Context.PendingItems)) },
			on(domain.EventSpeakComplete).goTo(domain.AtListenForAttitude))
		c.state(domain.AtListenForAttitude, (*step).listenEntry,
			on(domain.EventRecognized).goTo(domain.AtFetchAttitude).do(recordUtterance))
		c.state(domain.AtFetchAttitude, fetchAttitude,
			on(domain.EventTaskDone).when(isAttitude(domain.AttitudeAffirmative)).goTo(domain.AtClosing),
			on(domain.EventTaskDone).when(isAttitude(domain.AttitudeNegative)).goTo(domain.AtPrompt),
			on(domain.EventTaskDone).do(e.logFailure("unrecognized attitude")),
			e.completionFailed())
		c.state(domain.AtClosing, func(s *step) { s.speak(ClosingLine) })
	}

	c.state(domain.AtDone, nil,
		on(domain.EventStart).goTo(domain.AtPrompting).do(e.resetTurn()))
	return c
}

// Entry actions.

func (e *Engine) prepare(s *step) {
	s.emit(domain.ActionRequest{Type: domain.ActionPrepare, Payload: e.settings})
}

func (e *Engine) fetchOptions(s *step) {
	s.runTask(domain.TaskRequest{Kind: domain.TaskFetchOptions})
}

func (e *Engine) greet(s *step) {
	if s.state.Variant == domain.VariantChat {
		s.speak(ChatGreeting(s.state.Context.AvailableOptions))
		return
	}
	s.speak(e.greeting)
}

func (s *step) listenEntry() {
	s.listen()
}

func (e *Engine) interpretEntry(s *step) {
	if s.state.Variant == domain.VariantChat {
		s.runTask(domain.TaskRequest{
			Kind:     domain.TaskInterpret,
			Messages: append([]domain.Message(nil), s.state.Context.History...),
		})
		return
	}
	s.runTask(domain.TaskRequest{
		Kind:   domain.TaskInterpret,
		Prompt: OrderPrompt(s.state.Context.LastUtterance()),
		Format: "json",
	})
}

func fetchAttitude(s *step) {
	s.runTask(domain.TaskRequest{
		Kind:   domain.TaskAttitude,
		Prompt: AttitudePrompt(s.state.Context.LastUtterance()),
	})
}

// Transition actions.

func (e *Engine) resetTurn() action {
	return action{name: "reset turn", fn: func(s *step, _ domain.Event) {
		s.state.Context = domain.NewTurnContext()
		s.state.PendingTask = ""
		s.state.Cycle++
	}}
}

var storeOptions = action{name: "store options", fn: func(s *step, ev domain.Event) {
	s.state.Context = s.state.Context.WithOptions(ev.Options)
}}

var countSilence = action{name: "count silence", fn: func(s *step, _ domain.Event) {
	s.state.Context = s.state.Context.IncrementSilence()
}}

var recordUtterance = action{name: "record utterance", fn: func(s *step, ev domain.Event) {
	s.state.Context = s.state.Context.Append(domain.UserMessage(ev.Utterance))
}}

func (e *Engine) interpretResult() action {
	return action{name: "interpret", fn: func(s *step, ev domain.Event) {
		out := e.interpreter.Interpret(s.state.Variant, ev.Text, s.state.Context)
		s.state.Context = out.Context
		if out.Err != nil {
			e.logger.Warn("structured result rejected",
				"session_id", s.state.SessionID,
				"task_id", ev.TaskID,
				"err", out.Err,
			)
		}
		e.logger.Debug("interpreted result",
			"session_id", s.state.SessionID,
			"intent", out.Intent.Kind,
			"pending_items", len(s.state.Context.PendingItems),
		)
	}}
}

func (e *Engine) apologize() action {
	return action{name: "apologize", fn: func(s *step, ev domain.Event) {
		e.logFailure("task failed, recovering").fn(s, ev)
		s.state.Context = s.state.Context.Append(domain.AssistantMessage(ApologyLine)).SetLastResult(ApologyLine)
	}}
}

func (e *Engine) logFailure(msg string) action {
	return action{name: "log", fn: func(s *step, ev domain.Event) {
		e.logger.Error(msg,
			"session_id", s.state.SessionID,
			"state", s.state.Path(),
			"task_id", ev.TaskID,
			"text", ev.Text,
			"err", ev.Err,
		)
	}}
}

// completionFailed stalls in place unless recovery is enabled.
func (e *Engine) completionFailed() rule {
	if e.recover {
		return on(domain.EventTaskFailed).goTo(domain.AtRespond).do(e.apologize())
	}
	return on(domain.EventTaskFailed).do(e.logFailure("completion failed"))
}

// Guards.

func (e *Engine) silenceExceeded() guard {
	return guard{
		name: fmt.Sprintf("silence > %d", e.silence.MaxSilences),
		test: func(s *domain.State, _ domain.Event) bool {
			return e.silence.Decide(s.Context.SilenceCount) == SilenceTerminate
		},
	}
}

var hasPendingItems = guard{name: "has pending items", test: func(s *domain.State, _ domain.Event) bool {
	return len(s.Context.PendingItems) > 0
}}

func isAttitude(want domain.Attitude) guard {
	return guard{name: string(want), test: func(_ *domain.State, ev domain.Event) bool {
		return ClassifyAttitude(ev.Text) == want
	}}
}
