package domain

// IntentKind classifies the purpose of an utterance.
type IntentKind string

const (
	IntentOrder      IntentKind = "order"
	IntentAskInfo    IntentKind = "ask-info"
	IntentOther      IntentKind = "other"
	IntentParseError IntentKind = "parse-error"
)

// IntentResult is produced by the response interpreter and never persisted.
type IntentResult struct {
	Kind     IntentKind     `json:"kind"`
	Entities map[string]any `json:"entities,omitempty"`
}

// Attitude is the classification of a confirmation answer.
type Attitude string

const (
	AttitudeAffirmative Attitude = "affirmative"
	AttitudeNegative    Attitude = "negative"
	AttitudeUnknown     Attitude = "unknown"
)

// CatalogItem is an entry of the static menu.
type CatalogItem struct {
	Key   string `json:"key" yaml:"key"`
	Field string `json:"field" yaml:"field"`
	Name  string `json:"name" yaml:"name"`
}
