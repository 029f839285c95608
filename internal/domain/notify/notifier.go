package notify

import (
	"context"
	"errors"
	"fmt"
)

// Notifier defines the outbound transport for greetings. This decouples the
// delivery pipeline from the concrete HTTP client so workers can be tested
// against a fake.
type Notifier interface {
	// Send delivers the message to the given email address. A nil return
	// means the remote service accepted the message.
	Send(ctx context.Context, email, message string) error
}

// ErrTimeout marks a send that did not complete within the notifier's
// bounded timeout.
var ErrTimeout = errors.New("notifier request timed out")

// RemoteError is a non-2xx response from the notifier service.
type RemoteError struct {
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("notifier returned unexpected status %d", e.StatusCode)
}

// Classify buckets a send error for logging and diagnostics: "timeout",
// "remote_status" or "transport".
func Classify(err error) string {
	var remote *RemoteError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &remote):
		return "remote_status"
	default:
		return "transport"
	}
}
