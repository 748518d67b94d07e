package domain

import "strings"

// Variant selects which dialogue the controller runs.
type Variant string

const (
	// VariantChat is a plain conversation with the completion backend.
	VariantChat Variant = "chat"
	// VariantOrdering extracts orders from utterances and confirms them.
	VariantOrdering Variant = "ordering"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	return v == VariantChat || v == VariantOrdering
}

// Phase is the top-level region of the dialogue.
type Phase string

const (
	PhasePrepare     Phase = "Prepare"
	PhaseWaitToStart Phase = "WaitToStart"
	PhasePrompting   Phase = "Prompting"
	PhaseDone        Phase = "Done"
)

// PromptingState is the active child of the Prompting phase.
type PromptingState string

const (
	PromptingFetchOptions      PromptingState = "FetchOptions"
	PromptingPrompt            PromptingState = "Prompt"
	PromptingListen            PromptingState = "Listen"
	PromptingNoInput           PromptingState = "NoInput"
	PromptingInterpret         PromptingState = "Interpret"
	PromptingRespond           PromptingState = "Respond"
	PromptingCheckState        PromptingState = "CheckState"
	PromptingConfirm           PromptingState = "Confirm"
	PromptingListenForAttitude PromptingState = "ListenForAttitude"
	PromptingFetchAttitude     PromptingState = "FetchAttitude"
	PromptingDone              PromptingState = "Done"
)

// NoInputState is the active child of Prompting.NoInput.
type NoInputState string

const (
	NoInputChoice    NoInputState = "Choice"
	NoInputRetry     NoInputState = "Retry"
	NoInputTerminate NoInputState = "Terminate"
)

// Location identifies exactly one active state per region.
// Children are only set when their parent is active.
type Location struct {
	Phase     Phase          `json:"phase" yaml:"phase"`
	Prompting PromptingState `json:"prompting,omitempty" yaml:"prompting,omitempty"`
	NoInput   NoInputState   `json:"no_input,omitempty" yaml:"no_input,omitempty"`
}

var (
	AtPrepare           = Location{Phase: PhasePrepare}
	AtWaitToStart       = Location{Phase: PhaseWaitToStart}
	AtPrompting         = Location{Phase: PhasePrompting}
	AtDone              = Location{Phase: PhaseDone}
	AtFetchOptions      = Location{Phase: PhasePrompting, Prompting: PromptingFetchOptions}
	AtPrompt            = Location{Phase: PhasePrompting, Prompting: PromptingPrompt}
	AtListen            = Location{Phase: PhasePrompting, Prompting: PromptingListen}
	AtNoInput           = Location{Phase: PhasePrompting, Prompting: PromptingNoInput}
	AtNoInputChoice     = Location{Phase: PhasePrompting, Prompting: PromptingNoInput, NoInput: NoInputChoice}
	AtNoInputRetry      = Location{Phase: PhasePrompting, Prompting: PromptingNoInput, NoInput: NoInputRetry}
	AtNoInputTerminate  = Location{Phase: PhasePrompting, Prompting: PromptingNoInput, NoInput: NoInputTerminate}
	AtInterpret         = Location{Phase: PhasePrompting, Prompting: PromptingInterpret}
	AtRespond           = Location{Phase: PhasePrompting, Prompting: PromptingRespond}
	AtCheckState        = Location{Phase: PhasePrompting, Prompting: PromptingCheckState}
	AtConfirm           = Location{Phase: PhasePrompting, Prompting: PromptingConfirm}
	AtListenForAttitude = Location{Phase: PhasePrompting, Prompting: PromptingListenForAttitude}
	AtFetchAttitude     = Location{Phase: PhasePrompting, Prompting: PromptingFetchAttitude}
	AtClosing           = Location{Phase: PhasePrompting, Prompting: PromptingDone}
)

// String renders the dotted path, e.g. "Prompting.NoInput.Retry".
func (l Location) String() string {
	parts := []string{string(l.Phase)}
	if l.Prompting != "" {
		parts = append(parts, string(l.Prompting))
	}
	if l.NoInput != "" {
		parts = append(parts, string(l.NoInput))
	}
	return strings.Join(parts, ".")
}

// Parent returns the enclosing composite state and false at the top level.
func (l Location) Parent() (Location, bool) {
	switch {
	case l.NoInput != "":
		return Location{Phase: l.Phase, Prompting: l.Prompting}, true
	case l.Prompting != "":
		return Location{Phase: l.Phase}, true
	default:
		return Location{}, false
	}
}

// Within reports whether l is other or one of its descendants.
func (l Location) Within(other Location) bool {
	for cur, ok := l, true; ok; cur, ok = cur.Parent() {
		if cur == other {
			return true
		}
	}
	return false
}

// ParseLocation is the inverse of Location.String.
func ParseLocation(path string) (Location, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Location{}, false
	}
	loc := Location{Phase: Phase(parts[0])}
	if len(parts) > 1 {
		loc.Prompting = PromptingState(parts[1])
	}
	if len(parts) > 2 {
		loc.NoInput = NoInputState(parts[2])
	}
	return loc, true
}

// State represents the current snapshot of a dialogue session.
type State struct {
	SessionID string   `json:"session_id" yaml:"session_id"`
	Variant   Variant  `json:"variant" yaml:"variant"`
	Location  Location `json:"location" yaml:"location"`

	// Context holds the turn data owned by the controller.
	Context TurnContext `json:"context" yaml:"context"`

	// PendingTask is the ID of the only task whose outcome will be acted upon.
	PendingTask string `json:"pending_task,omitempty" yaml:"pending_task,omitempty"`

	// Cycle counts interactions started in this session.
	Cycle int `json:"cycle" yaml:"cycle"`
}

// NewState creates a clean state in the Prepare phase.
func NewState(sessionID string, variant Variant) *State {
	return &State{
		SessionID: sessionID,
		Variant:   variant,
		Location:  AtPrepare,
		Context:   NewTurnContext(),
	}
}

// Path is a shorthand for Location.String.
func (s *State) Path() string {
	return s.Location.String()
}

// Snapshot returns a deep copy that is safe to hand to other goroutines.
func (s *State) Snapshot() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Context = s.Context.Clone()
	return &next
}

// Idle reports whether the session waits for the start signal.
func (s *State) Idle() bool {
	return s.Location == AtWaitToStart || s.Location == AtDone || s.Location == AtClosing
}
