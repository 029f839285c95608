package recipient

import (
	"time"
)

// Recipient is a registered person as the external directory exposes them.
// The core never writes recipients; their CRUD lives in a separate service.
type Recipient struct {
	ID          int64
	DisplayName string
	Email       string
	Timezone    string // IANA zone name, e.g. "America/New_York"
	BirthMonth  int    // 1-12
	BirthDay    int    // 1-31, valid for some calendar year (Feb 29 allowed)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
