package speech

import (
	"fmt"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/runner"
)

// ParseEvent builds the speech event a remote client reported.
// Recognized utterances go through runner.SanitizeUtterance.
func ParseEvent(kind domain.EventType, utterance string) (domain.Event, error) {
	switch kind {
	case domain.EventReady:
		return domain.Ready(), nil
	case domain.EventNoInput:
		return domain.NoInput(), nil
	case domain.EventSpeakComplete:
		return domain.SpeakComplete(), nil
	case domain.EventRecognized:
		clean, err := runner.SanitizeUtterance(utterance)
		if err != nil {
			return domain.Event{}, err
		}
		return domain.Recognized(clean), nil
	default:
		return domain.Event{}, fmt.Errorf("%q is not a speech event", kind)
	}
}
