package domain

// StateKind constants define how a state behaves in the chart.
const (
	// StateKindAtomic waits for an external event.
	StateKindAtomic = "atomic"
	// StateKindComposite has children and an initial child.
	StateKindComposite = "composite"
	// StateKindTransient is left immediately through an eventless guard.
	StateKindTransient = "transient"
	// StateKindTask waits for the outcome of an interpretation task.
	StateKindTask = "task"
	// StateKindIdle waits for the start signal.
	StateKindIdle = "idle"
)

// Transition defines a rule to move from one state to another.
type Transition struct {
	From string `json:"from" yaml:"from"`

	// To is empty for rules that act without leaving the state.
	To string `json:"to,omitempty" yaml:"to,omitempty"`

	// Event is empty for eventless transitions.
	Event EventType `json:"event,omitempty" yaml:"event,omitempty"`

	// Guard names the condition that must hold, "" meaning always.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`
}

// StateNode describes a state of the dialogue chart for introspection.
type StateNode struct {
	ID          string       `json:"id" yaml:"id"`
	Kind        string       `json:"kind" yaml:"kind"`
	Initial     string       `json:"initial,omitempty" yaml:"initial,omitempty"`
	Transitions []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}
