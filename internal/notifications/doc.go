// Package notifications delivers run outcome events via pluggable notifiers.
//
// The ntfy notifier publishes to the topic configured in config.toml; the
// desktop notifier raises a system notification through beeep. Both are
// opt-in and NewService degrades to a no-op when neither is enabled. Callers
// publish an Event with a loose Payload so the CLI and watch loop emit the same
// messages without duplicating HTTP glue.
package notifications
