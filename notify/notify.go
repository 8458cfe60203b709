// Package notify delivers publish outcomes to the user. Exactly one event is
// emitted per completed publish attempt: success once both files are written,
// failure once retries are exhausted.
package notify

import "github.com/rs/zerolog"

// Status classifies a notification.
type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	if s == Success {
		return "success"
	}
	return "failure"
}

// Notifier receives publish outcome events.
type Notifier interface {
	Notify(status Status, message string)
}

// Func adapts a plain function to the Notifier interface.
type Func func(Status, string)

func (f Func) Notify(status Status, message string) {
	f(status, message)
}

// LogNotifier writes notifications to a structured log. It is the default
// sink when no richer notification surface is wired in.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(status Status, message string) {
	if status == Success {
		n.Log.Info().Str("status", status.String()).Msg(message)
		return
	}
	n.Log.Error().Str("status", status.String()).Msg(message)
}
