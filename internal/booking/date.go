package booking

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// NormalizeDate reduces a date or timestamp to its calendar day so that
// time-of-day noise never splits one bucket into several. Timestamps keep the
// day they name in their own offset: 2024-06-01T23:30:00-05:00 is June 1st.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t.Format(dayLayout), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Format(dayLayout), nil
	}
	return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD or RFC 3339", ErrInvalidInput, s)
}
