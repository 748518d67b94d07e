// Package task runs the detached interpretation tasks requested by the dialogue engine.
//
// A task is one call to the completion or catalog provider. Its outcome is always
// normalized into exactly one event, task-done or task-failed, which the host posts
// back to the session queue. Tasks are never retried.
package task
