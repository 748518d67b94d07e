package domain

// ActionRequest represents a side-effect that the controller requests the host to perform.
type ActionRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Standard Action Types
const (
	// ActionPrepare asks the speech provider to initialize.
	ActionPrepare = "PREPARE"

	// ActionListen asks the speech provider to start recognition.
	ActionListen = "LISTEN"

	// ActionSpeak asks the speech provider to synthesize text.
	// Payload: string
	ActionSpeak = "SPEAK"

	// ActionRunTask asks the host to run a detached interpretation task.
	// Payload: TaskRequest
	ActionRunTask = "RUN_TASK"
)

// TaskKind defines what an interpretation task does.
type TaskKind string

const (
	TaskFetchOptions TaskKind = "fetch-options"
	TaskInterpret    TaskKind = "interpret"
	TaskAttitude     TaskKind = "attitude"
)

// TaskRequest describes one call to the completion or catalog provider.
// Either Messages or Prompt is set for completion tasks.
type TaskRequest struct {
	ID       string    `json:"id"`
	Kind     TaskKind  `json:"kind"`
	Messages []Message `json:"messages,omitempty"`
	Prompt   string    `json:"prompt,omitempty"`
	Format   string    `json:"format,omitempty"`
}

// SpeakText returns the payload of a SPEAK directive.
func (a ActionRequest) SpeakText() (string, bool) {
	if a.Type != ActionSpeak {
		return "", false
	}
	text, ok := a.Payload.(string)
	return text, ok
}

// Task returns the payload of a RUN_TASK directive.
func (a ActionRequest) Task() (TaskRequest, bool) {
	if a.Type != ActionRunTask {
		return TaskRequest{}, false
	}
	req, ok := a.Payload.(TaskRequest)
	return req, ok
}
