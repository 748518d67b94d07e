package runtime

// SilenceDecision is the outcome of the silence policy.
type SilenceDecision int

const (
	// SilenceRetry re-prompts and listens again.
	SilenceRetry SilenceDecision = iota
	// SilenceTerminate says goodbye and ends the session.
	SilenceTerminate
)

func (d SilenceDecision) String() string {
	if d == SilenceTerminate {
		return "terminate"
	}
	return "retry"
}

// DefaultMaxSilences is the number of no-input events tolerated before terminating.
const DefaultMaxSilences = 1

// SilencePolicy decides how to continue after a no-input event.
type SilencePolicy struct {
	// MaxSilences is the highest silence count that still leads to a retry.
	MaxSilences int
}

// DefaultSilencePolicy terminates on the second consecutive silence.
func DefaultSilencePolicy() SilencePolicy {
	return SilencePolicy{MaxSilences: DefaultMaxSilences}
}

// Decide expects count to be already incremented for the current no-input.
func (p SilencePolicy) Decide(count int) SilenceDecision {
	if count > p.MaxSilences {
		return SilenceTerminate
	}
	return SilenceRetry
}
