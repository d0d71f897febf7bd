// Package notifications delivers batch run events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Individual event classes can be switched off in the [notifications]
// section so operators only hear about what they care about.
package notifications
