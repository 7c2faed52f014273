// Package dashboard is the Bubble Tea front end over the engine. The model
// plays the dispatcher role: it drains the engine queue, applies events to
// the store, and renders the result. Daemon calls never run inside Update;
// they run as commands whose outcomes come back through the queue, so the
// terminal stays responsive however slow the daemon is.
package dashboard
