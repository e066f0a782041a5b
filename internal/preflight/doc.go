// Package preflight runs readiness checks before the daemon accepts work.
//
// Checks cover the data and log directories, free space for the knowledge
// store, the inbox directory when enabled and NATS reachability when an event
// broker is configured. The workflow manager repeats the free-space check
// before every storage stage.
package preflight
