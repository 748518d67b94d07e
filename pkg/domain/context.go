package domain

// PendingItem is a record extracted from an order intent, e.g. {food: "1 burger"}.
type PendingItem struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// TurnContext is the data threaded through a dialogue session.
//
// Every method returns a new value and leaves the receiver untouched. Slices are
// capped before appending so that a previous snapshot never observes a later write.
type TurnContext struct {
	History          []Message     `json:"history" yaml:"history"`
	SilenceCount     int           `json:"silence_count" yaml:"silence_count"`
	LastResult       *string       `json:"last_result,omitempty" yaml:"last_result,omitempty"`
	PendingItems     []PendingItem `json:"pending_items,omitempty" yaml:"pending_items,omitempty"`
	AvailableOptions []string      `json:"available_options,omitempty" yaml:"available_options,omitempty"`
}

// NewTurnContext returns an empty context.
func NewTurnContext() TurnContext {
	return TurnContext{History: []Message{}}
}

// Append adds a message to the end of the history.
func (c TurnContext) Append(m Message) TurnContext {
	c.History = append(c.History[:len(c.History):len(c.History)], m)
	return c
}

// IncrementSilence counts one more no-input event.
func (c TurnContext) IncrementSilence() TurnContext {
	c.SilenceCount++
	return c
}

// ResetSilence zeroes the silence counter.
func (c TurnContext) ResetSilence() TurnContext {
	c.SilenceCount = 0
	return c
}

// SetLastResult overwrites the most recent response text.
func (c TurnContext) SetLastResult(text string) TurnContext {
	c.LastResult = &text
	return c
}

// AddPendingItem appends an extracted order record.
func (c TurnContext) AddPendingItem(item PendingItem) TurnContext {
	c.PendingItems = append(c.PendingItems[:len(c.PendingItems):len(c.PendingItems)], item)
	return c
}

// WithOptions stores the options fetched for this session.
func (c TurnContext) WithOptions(options []string) TurnContext {
	c.AvailableOptions = append([]string(nil), options...)
	return c
}

// LastResultText returns the last result, or "" when none was produced yet.
func (c TurnContext) LastResultText() string {
	if c.LastResult == nil {
		return ""
	}
	return *c.LastResult
}

// LastUtterance returns the content of the most recent user message.
func (c TurnContext) LastUtterance() string {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == RoleUser {
			return c.History[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy with no shared backing arrays.
func (c TurnContext) Clone() TurnContext {
	out := c
	out.History = append([]Message{}, c.History...)
	if c.PendingItems != nil {
		out.PendingItems = append([]PendingItem{}, c.PendingItems...)
	}
	if c.AvailableOptions != nil {
		out.AvailableOptions = append([]string{}, c.AvailableOptions...)
	}
	if c.LastResult != nil {
		v := *c.LastResult
		out.LastResult = &v
	}
	return out
}
