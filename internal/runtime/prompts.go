package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// Fixed utterances.
const (
	RetryPrompt      = "I didn't hear you"
	NotUnderstood    = "I don't understand."
	ClosingLine      = "Thank you for your order!"
	ApologyLine      = "Sorry, something went wrong."
	OrderingGreeting = "Welcome to Wax Burger! What would you like to order?"

	chatGreetingPrefix = "Hello world! Available models are: "
	farewellFormat     = "I didn't hear you %d times. Goodbye!"
)

// Farewell is spoken when the silence policy terminates the session.
func Farewell(count int) string {
	return fmt.Sprintf(farewellFormat, count)
}

// ChatGreeting announces the available models.
func ChatGreeting(options []string) string {
	return chatGreetingPrefix + strings.Join(options, " ")
}

// MenuResponse enumerates the catalog in its declared order.
func MenuResponse(catalog []domain.CatalogItem) string {
	names := make([]string, len(catalog))
	for i, item := range catalog {
		names[i] = item.Name
	}
	return "The menu is: " + strings.Join(names, ", ") + "."
}

// ConfirmQuestion summarizes the pending order.
func ConfirmQuestion(items []domain.PendingItem) string {
	values := make([]string, len(items))
	for i, item := range items {
		values[i] = item.Value
	}
	return "You ordered " + strings.Join(values, ", ") + ". Is that correct?"
}

// OrderPrompt frames intent extraction for the last utterance. The reply is expected in JSON.
func OrderPrompt(utterance string) string {
	return fmt.Sprintf(`You are a virtual assistant taking a fast-food order. Extract the intent and entities from the user's latest input: %q and respond using JSON.
Example response:
{"intent": "order", "entities": {"food": "1 burger", "drink": "2 cokes"}}
Valid intents are:
1. "order" (when ordering food or drink)
2. "ask_for_menu" (when asking for the menu)
3. "others" (for anything else)
Reply with only JSON and no additional text.
If no order or menu is requested, respond with:
{"intent": "others", "entities": null}`, utterance)
}

// AttitudePrompt frames a positive/negative classification of the last utterance.
func AttitudePrompt(utterance string) string {
	return fmt.Sprintf(`You are a virtual attitude detector. Determine the attitude of the user based on their latest input: %q and respond with either "positive" or "negative" and nothing else.`, utterance)
}
