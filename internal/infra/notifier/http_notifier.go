// internal/infra/notifier/http_notifier.go
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"birthday_notification_service/internal/domain/notify"

	"github.com/go-resty/resty/v2"
)

// sendRequest is the JSON body POSTed to the notification service.
type sendRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// HTTPNotifier calls the external notification service over HTTP. Each Send
// is exactly one POST with a bounded timeout; the retry schedule belongs to
// the dispatcher, so the client itself carries no retry policy.
type HTTPNotifier struct {
	client *resty.Client
	url    string
}

func NewHTTPNotifier(url string, timeout time.Duration) *HTTPNotifier {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "birthday-notification-service")
	return &HTTPNotifier{client: client, url: url}
}

func (n *HTTPNotifier) Send(ctx context.Context, email, message string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendRequest{Email: email, Message: message}).
		Post(n.url)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w after %s: %v", notify.ErrTimeout, n.client.GetClient().Timeout, err)
		}
		return fmt.Errorf("notifier request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return &notify.RemoteError{StatusCode: resp.StatusCode()}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
