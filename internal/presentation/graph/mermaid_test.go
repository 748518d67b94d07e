package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/voiceloop/internal/presentation/graph"
	"github.com/aretw0/voiceloop/internal/runtime"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.StateNode
		contains []string
	}{
		{
			name: "Shapes By Kind",
			nodes: []domain.StateNode{
				{ID: "WaitToStart", Kind: domain.StateKindIdle},
				{ID: "Fetch", Kind: domain.StateKindTask},
				{ID: "Choice", Kind: domain.StateKindTransient},
				{ID: "Listen", Kind: domain.StateKindAtomic},
			},
			contains: []string{
				`WaitToStart(("WaitToStart"))`,
				`Fetch[["Fetch"]]`,
				`Choice{"Choice"}`,
				`Listen["Listen"]`,
			},
		},
		{
			name: "Composite Subgraph",
			nodes: []domain.StateNode{
				{ID: "Prompting", Kind: domain.StateKindComposite, Initial: "Prompting.Prompt"},
				{ID: "Prompting.Prompt", Kind: domain.StateKindAtomic},
			},
			contains: []string{
				`subgraph Prompting["Prompting"]`,
				`Prompting_Prompt["Prompt"]`,
				`Prompting_init(( )) --> Prompting_Prompt`,
			},
		},
		{
			name: "Transition Labels",
			nodes: []domain.StateNode{
				{ID: "A", Transitions: []domain.Transition{
					{From: "A", To: "B", Event: domain.EventTaskDone, Guard: `say "yes"`},
					{From: "A", To: "C", Guard: "silence > 1"},
					{From: "A", Event: domain.EventTaskFailed},
				}},
			},
			contains: []string{
				`A -- "task-done [say 'yes']" --> B`,
				`A -- "[silence > 1]" --> C`,
				`A -- "task-failed" --> A`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	nodes := runtime.NewEngine().InspectVariant(domain.VariantOrdering)
	got := graph.GenerateMermaid(nodes, &graph.GraphOverlay{CurrentState: "Prompting.NoInput.Retry"})

	assert.True(t, strings.HasPrefix(got, "graph TD\n"))
	assert.Contains(t, got, "subgraph Prompting_NoInput[\"NoInput\"]")
	assert.Contains(t, got, "class Prompting_NoInput_Retry current;")

	var opened, closed int
	for _, line := range strings.Split(got, "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "subgraph "):
			opened++
		case strings.TrimSpace(line) == "end":
			closed++
		}
	}
	assert.Equal(t, 2, opened)
	assert.Equal(t, opened, closed)
}

func TestGenerateMermaid_NoOverlay(t *testing.T) {
	got := graph.GenerateMermaid([]domain.StateNode{{ID: "Done", Kind: domain.StateKindIdle}}, &graph.GraphOverlay{})
	assert.NotContains(t, got, "classDef")
}
