/*
Package ports defines the driven ports (interfaces) of the voiceloop turn controller.

These interfaces decouple the dialogue core from its collaborators, allowing the
controller to run against real speech and completion services, in-process bridges
or test doubles.

# Key Interfaces

  - SpeechProvider: performs recognition and synthesis; receives directives, emits events.
  - CompletionProvider: turns a message history or a prompt into text.
  - CatalogProvider: lists the options (models, menu entries) offered in a session.
  - StateStore: publishes session snapshots for inspection.
  - DistributedLocker: coordinates snapshot writes across replicas.
*/
package ports
