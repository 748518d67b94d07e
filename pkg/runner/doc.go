/*
Package runner implements the single-threaded dispatcher that hosts one dialogue session.

It is the bridge between the pure dialogue engine and the outside world: events from
the speech provider and from detached tasks are processed one at a time, to completion.
Every step commits the new state (store and observers) and then carries out the
directives the engine returned.

# Usage

	r := runner.New(engine, speech, task.New(llm, llm),
		runner.WithSessionID("kiosk-1"),
		runner.WithStore(store),
	)

	go r.Run(ctx)
	_ = r.Trigger(ctx) // start or restart the interaction
*/
package runner
