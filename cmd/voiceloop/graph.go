package main

import (
	"fmt"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/presentation/graph"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dialogue state chart",
	Long: `Outputs a Mermaid diagram (graph TD) of the dialogue state chart.
With --session, the current state of a stored session is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		variant := domain.Variant(cfg.Dialogue.Variant)

		var overlay *graph.GraphOverlay
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			state, err := st.store.Load(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to load session %q: %w", id, err)
			}
			variant = state.Variant
			overlay = &graph.GraphOverlay{CurrentState: state.Path()}
		}

		// The chart does not depend on the providers.
		eng, err := voiceloop.New(voiceloop.WithVariant(variant))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(eng.Inspect(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("variant", "ordering", "dialogue variant: ordering or chat")
	graphCmd.Flags().String("session", "", "highlight the current state of this stored session")
}
