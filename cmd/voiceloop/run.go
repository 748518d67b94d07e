package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/presentation/tui"
	"github.com/aretw0/voiceloop/pkg/observability"
	"github.com/aretw0/voiceloop/pkg/runner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Talk to the dialogue in the terminal",
	Long: `Runs one session with the terminal standing in for the speech service.
Typed lines are recognized speech and a line that does not arrive within the
no-input timeout counts as silence. Press Enter to start; Ctrl-D ends the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		eng, err := newEngine(cmd, observability.LoggingHooks(logger))
		if err != nil {
			return err
		}

		if noBanner, _ := cmd.Flags().GetBool("no-banner"); !noBanner {
			tui.PrintBanner(cmd.OutOrStdout(), voiceloop.Version)
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		logger.Info("session started", "session_id", sessionID, "variant", eng.Variant(), "store", cfg.Store.Kind)

		r := &voiceloop.ConsoleRunner{
			Input:  cmd.InOrStdin(),
			Output: cmd.OutOrStdout(),
			RunnerOptions: []runner.Option{
				runner.WithSessionID(sessionID),
				runner.WithStore(st.store),
			},
		}
		return r.Run(ctx, eng)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addDialogueFlags(runCmd)
	runCmd.Flags().String("session", "", "session ID (default: random)")
	runCmd.Flags().Bool("no-banner", false, "do not print the banner")
}
