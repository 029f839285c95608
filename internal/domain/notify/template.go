package notify

import "fmt"

// MessageType selects a greeting template.
type MessageType string

const (
	MessageTypeBirthday MessageType = "BIRTHDAY"
	// MessageTypeAnniversary is reserved; nothing enqueues it yet.
	MessageTypeAnniversary MessageType = "ANNIVERSARY"
)

// Content renders the message body for a type and display name.
func Content(t MessageType, displayName string) string {
	switch t {
	case MessageTypeBirthday:
		return fmt.Sprintf("Hey, %s it's your birthday", displayName)
	case MessageTypeAnniversary:
		return fmt.Sprintf("Hey, %s happy anniversary", displayName)
	default:
		return ""
	}
}
