/*
Package voiceloop is a turn controller for spoken dialogue. It sits between a
speech service and a language model, and it decides when to listen, what to
say, and how to react to silence.

The dialogue is a hierarchical state machine. The core is pure: given a state
and an event it returns the next state and the directives the host must carry
out (PREPARE, LISTEN, SPEAK, RUN_TASK). Hosts execute those directives,
report speech events back, and run interpretation tasks in the background so
that a slow model never blocks the dialogue.

# Variants

  - ordering: a drive-through style order taker. Model replies are structured
    JSON (intent and entities). Orders are confirmed before the dialogue closes.
  - chat: free conversation. The full history is sent to the model.

# Usage

	eng, err := voiceloop.New(
		voiceloop.WithCatalog(catalog.Default()),
		voiceloop.WithCompletion(provider),
	)
	if err != nil {
		log.Fatal(err)
	}

	r := &voiceloop.ConsoleRunner{Input: os.Stdin, Output: os.Stdout}
	if err := r.Run(ctx, eng); err != nil {
		log.Fatal(err)
	}

Servers host many sessions at once through NewHub, with a speech bridge per
session that a remote client drains and reports to.
*/
package voiceloop
