package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/bytedance/sonic"
)

// Entity fields extracted from an order, in the order they are recorded.
var orderFields = []string{"food", "drink"}

// Interpretation is the outcome of interpreting one raw completion result.
type Interpretation struct {
	Intent   domain.IntentResult
	Response string
	Context  domain.TurnContext
	// Err is domain.ErrParseError when the structured result was malformed.
	Err error
}

// Interpreter turns raw completion text into a spoken response and the next turn context.
type Interpreter struct {
	catalog []domain.CatalogItem
}

// NewInterpreter creates an interpreter answering menu questions from catalog.
func NewInterpreter(catalog []domain.CatalogItem) *Interpreter {
	return &Interpreter{catalog: catalog}
}

// Interpret never fails: malformed input degrades to the fixed not-understood response.
func (i *Interpreter) Interpret(variant domain.Variant, raw string, c domain.TurnContext) Interpretation {
	var out Interpretation
	if variant == domain.VariantChat {
		out.Intent = domain.IntentResult{Kind: domain.IntentOther}
		out.Response = raw
	} else {
		out = i.interpretStructured(raw, c)
		c = out.Context
	}

	out.Context = c.Append(domain.AssistantMessage(out.Response)).SetLastResult(out.Response)
	return out
}

type structuredResult struct {
	Intent   any `json:"intent"`
	Entities any `json:"entities"`
}

func (i *Interpreter) interpretStructured(raw string, c domain.TurnContext) Interpretation {
	var parsed structuredResult
	if err := sonic.UnmarshalString(raw, &parsed); err != nil {
		return Interpretation{
			Intent:   domain.IntentResult{Kind: domain.IntentParseError},
			Response: NotUnderstood,
			Context:  c,
			Err:      fmt.Errorf("%w: %v", domain.ErrParseError, err),
		}
	}

	entities, _ := parsed.Entities.(map[string]any)
	intent, _ := parsed.Intent.(string)
	result := domain.IntentResult{Kind: classifyIntent(intent), Entities: entities}

	switch result.Kind {
	case domain.IntentOrder:
		for _, field := range orderFields {
			if v := entities[field]; truthy(v) {
				c = c.AddPendingItem(domain.PendingItem{Field: field, Value: render(v, true)})
			}
		}
		return Interpretation{
			Intent:   result,
			Response: fmt.Sprintf("You ordered %s and %s.", lookup(entities, "food"), lookup(entities, "drink")),
			Context:  c,
		}
	case domain.IntentAskInfo:
		return Interpretation{Intent: result, Response: MenuResponse(i.catalog), Context: c}
	default:
		return Interpretation{Intent: result, Response: NotUnderstood, Context: c}
	}
}

func classifyIntent(token string) domain.IntentKind {
	switch strings.TrimSpace(token) {
	case "order":
		return domain.IntentOrder
	case "ask_for_menu", "ask-info":
		return domain.IntentAskInfo
	default:
		return domain.IntentOther
	}
}

// lookup renders an entity the way it reads in a template: missing fields print as "undefined".
func lookup(entities map[string]any, field string) string {
	v, ok := entities[field]
	return render(v, ok)
}

func render(v any, present bool) string {
	if !present {
		return "undefined"
	}
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			if e != nil {
				parts[i] = render(e, true)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return fmt.Sprint(x)
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return true
	}
}

// ClassifyAttitude maps the classifier reply onto an attitude. Matching ignores case and surrounding space.
func ClassifyAttitude(raw string) domain.Attitude {
	switch {
	case strings.EqualFold(strings.TrimSpace(raw), "positive"):
		return domain.AttitudeAffirmative
	case strings.EqualFold(strings.TrimSpace(raw), "negative"):
		return domain.AttitudeNegative
	default:
		return domain.AttitudeUnknown
	}
}
