/*
Package domain contains the core types of the voiceloop turn controller.

It defines the dialogue state (Location, State, TurnContext), the events the
controller consumes, the directives it emits (ActionRequest) and the error
taxonomy. This package is kept pure and free of I/O so that the runtime, the
dispatcher and every adapter can share it without cycles.

# Key Entities

  - State: the snapshot of a session (active location, turn context, pending task).
  - TurnContext: history, silence counter, last result, pending items and options.
  - Event: everything that can wake the controller (speech events, task outcomes, start).
  - ActionRequest: a directive the host must perform (prepare, listen, speak, run task).
*/
package domain
