package recipient

import (
	"context"
)

// Directory is the read-only query surface of the recipient store that the
// delivery pipeline depends on.
type Directory interface {
	// FindByBirthday returns recipients whose birth month/day match and
	// whose timezone is one of the given zone names.
	FindByBirthday(ctx context.Context, month, day int, timezones []string) ([]*Recipient, error)

	// DistinctTimezones returns every timezone that at least one recipient
	// lives in. The scanner tests only these zones for the 09:00 mark:
	// zones with no recipients can never produce a delivery record.
	DistinctTimezones(ctx context.Context) ([]string, error)
}
