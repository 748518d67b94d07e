package voiceloop

import (
	"context"
	"errors"
	"io"

	"github.com/aretw0/voiceloop/pkg/adapters/speech"
	"github.com/aretw0/voiceloop/pkg/runner"
)

// ConsoleRunner hosts a single session on a terminal. Typed lines stand in
// for recognized speech and spoken text is printed.
type ConsoleRunner struct {
	Input  io.Reader
	Output io.Writer
	// SpeechOptions tune the console speech emulation, e.g. a fixed no-input timeout.
	SpeechOptions []speech.ConsoleOption
	// RunnerOptions are passed to the session runner, e.g. a snapshot store.
	RunnerOptions []runner.Option
}

// Run executes the session until ctx ends or the input is exhausted.
func (r *ConsoleRunner) Run(ctx context.Context, engine *Engine) error {
	if r.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}

	speechOpts := append([]speech.ConsoleOption{speech.WithConsoleLogger(engine.logger)}, r.SpeechOptions...)
	console := speech.NewConsole(r.Input, r.Output, speechOpts...)

	rn, err := engine.NewRunner(console, r.RunnerOptions...)
	if err != nil {
		return err
	}
	return rn.Run(ctx)
}
