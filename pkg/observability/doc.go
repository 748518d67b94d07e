/*
Package observability turns dialogue lifecycle hooks into logs and Prometheus metrics.

Both helpers return domain.LifecycleHooks that can be merged and passed to the
engine, the task runner and the session runner alike.
*/
package observability
