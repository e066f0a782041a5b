// Package notifications delivers job outcome alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Per-event toggles in the [notifications] section decide which terminal
// outcomes are sent.
package notifications
