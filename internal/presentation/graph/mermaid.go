package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/voiceloop/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// CurrentState is a dotted location path, e.g. "Prompting.Listen".
	CurrentState string
}

// GenerateMermaid produces a Mermaid flowchart of a dialogue chart.
// Composite states become subgraphs. Shapes follow the state kind:
//   - idle: ((Circle))
//   - task: [[Subroutine]]
//   - transient: {Diamond}
//   - atomic: [Rectangle]
func GenerateMermaid(nodes []domain.StateNode, overlay *GraphOverlay) string {
	children := make(map[string][]domain.StateNode)
	var roots []domain.StateNode
	for _, node := range nodes {
		if parent, ok := parentID(node.ID); ok {
			children[parent] = append(children[parent], node)
		} else {
			roots = append(roots, node)
		}
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")
	for _, node := range roots {
		writeNode(&sb, node, children, 1)
	}

	for _, node := range nodes {
		from := sanitizeMermaidID(node.ID)
		if node.Initial != "" {
			fmt.Fprintf(&sb, "    %s_init(( )) --> %s\n", from, sanitizeMermaidID(node.Initial))
		}
		for _, t := range node.Transitions {
			to := from
			if t.To != "" {
				to = sanitizeMermaidID(t.To)
			}
			arrow := "-->"
			if label := transitionLabel(t); label != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", label)
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
		}
	}

	if overlay != nil && overlay.CurrentState != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, node domain.StateNode, children map[string][]domain.StateNode, depth int) {
	indent := strings.Repeat("    ", depth)
	safeID := sanitizeMermaidID(node.ID)
	label := node.ID[strings.LastIndex(node.ID, ".")+1:]

	if kids := children[node.ID]; len(kids) > 0 {
		fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", indent, safeID, label)
		for _, kid := range kids {
			writeNode(sb, kid, children, depth+1)
		}
		fmt.Fprintf(sb, "%send\n", indent)
		return
	}

	opener, closer := "[", "]"
	switch node.Kind {
	case domain.StateKindIdle:
		opener, closer = "((", "))"
	case domain.StateKindTask:
		opener, closer = "[[", "]]"
	case domain.StateKindTransient:
		opener, closer = "{", "}"
	}
	fmt.Fprintf(sb, "%s%s%s\"%s\"%s\n", indent, safeID, opener, label, closer)
}

func transitionLabel(t domain.Transition) string {
	label := string(t.Event)
	if t.Guard != "" {
		guard := "[" + strings.ReplaceAll(t.Guard, "\"", "'") + "]"
		if label == "" {
			label = guard
		} else {
			label += " " + guard
		}
	}
	return label
}

func parentID(id string) (string, bool) {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return "", false
	}
	return id[:i], true
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
