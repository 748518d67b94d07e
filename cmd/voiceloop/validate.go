package main

import (
	"fmt"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/validator"
	"github.com/aretw0/voiceloop/pkg/catalog"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the dialogue charts and the menu",
	Long: `Crawls the state chart of every dialogue variant and reports dead links,
unreachable states and states that can get stuck. The configured menu file is
parsed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := voiceloop.New()
		if err != nil {
			return err
		}
		for _, v := range []domain.Variant{domain.VariantOrdering, domain.VariantChat} {
			if err := validator.ValidateChart(eng.InspectVariant(v)); err != nil {
				return fmt.Errorf("%s chart: %w", v, err)
			}
		}

		menu, err := catalog.Load(cfg.Dialogue.CatalogFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Charts are valid, menu has %d items.\n", len(menu))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("menu", "", "YAML menu file (default: built-in menu)")
}
