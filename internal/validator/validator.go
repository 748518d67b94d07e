package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// ValidateChart checks a state chart, as returned by Inspect, for transitions
// to unknown states, broken composites, transient states that can get stuck
// and states that cannot be reached from the first node.
func ValidateChart(nodes []domain.StateNode) error {
	if len(nodes) == 0 {
		return fmt.Errorf("chart has no states")
	}

	byID := make(map[string]domain.StateNode, len(nodes))
	var problems []string
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate state '%s'", n.ID))
		}
		byID[n.ID] = n
	}

	for _, n := range nodes {
		if n.Kind == domain.StateKindComposite {
			switch _, ok := byID[n.Initial]; {
			case n.Initial == "":
				problems = append(problems, fmt.Sprintf("composite '%s' has no initial state", n.ID))
			case !ok || parentOf(n.Initial) != n.ID:
				problems = append(problems, fmt.Sprintf("initial state '%s' is not a child of '%s'", n.Initial, n.ID))
			}
		}

		for _, t := range n.Transitions {
			if t.To == "" {
				continue
			}
			if _, ok := byID[t.To]; !ok {
				problems = append(problems, fmt.Sprintf("'%s' on %s targets unknown state '%s'", n.ID, label(t), t.To))
			}
		}

		if n.Kind == domain.StateKindTransient && !hasFallback(n) {
			problems = append(problems, fmt.Sprintf("transient state '%s' has no unguarded way out", n.ID))
		}
		if n.Kind != domain.StateKindIdle && !hasExit(byID, n.ID) {
			problems = append(problems, fmt.Sprintf("state '%s' has no way out", n.ID))
		}
	}

	visited := make(map[string]bool, len(nodes))
	queue := []string{nodes[0].ID}
	visited[nodes[0].ID] = true
	enter := func(id string) {
		// Entering a state activates its ancestors too.
		for cur := id; cur != ""; cur = parentOf(cur) {
			if _, ok := byID[cur]; ok && !visited[cur] {
				visited[cur] = true
				queue = append(queue, cur)
			}
		}
	}
	for len(queue) > 0 {
		n := byID[queue[0]]
		queue = queue[1:]
		if n.Initial != "" {
			enter(n.Initial)
		}
		for _, t := range n.Transitions {
			if t.To != "" {
				enter(t.To)
			}
		}
	}
	for _, n := range nodes {
		if !visited[n.ID] {
			problems = append(problems, fmt.Sprintf("state '%s' is unreachable", n.ID))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

func parentOf(id string) string {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return ""
	}
	return id[:i]
}

func label(t domain.Transition) string {
	if t.Event == "" {
		return "(always)"
	}
	return string(t.Event)
}

func hasFallback(n domain.StateNode) bool {
	for _, t := range n.Transitions {
		if t.Event == "" && t.Guard == "" && t.To != "" {
			return true
		}
	}
	return false
}

// hasExit reports whether id or one of its ancestors leaves on some event.
func hasExit(byID map[string]domain.StateNode, id string) bool {
	for cur := id; cur != ""; cur = parentOf(cur) {
		for _, t := range byID[cur].Transitions {
			if t.To != "" {
				return true
			}
		}
	}
	return false
}
