// ABOUTME: Mixer to event bus bridge package
// ABOUTME: Publishes mixer notifications and applies broker commands
// Package bridge connects a mixer to the event broker.
//
// Every mixer notification is published as "mixer:<type>". The bridge
// listens for "new-volume-main" (0..100, applied to every stream) and
// "mixer-command" (pause, resume, stop, remove, volume, fade-out,
// fade-in, crossfade).
package bridge
