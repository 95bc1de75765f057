package booking

import "errors"

// Rejections a resident can act on. Anything wrapping ErrStorage is an
// unexpected failure of the database and is not the caller's fault.
var (
	ErrInvalidInput         = errors.New("invalid reservation request")
	ErrFacilityNotFound     = errors.New("facility not found")
	ErrDuplicateReservation = errors.New("you have already booked this slot")
	ErrSlotFull             = errors.New("slot is full")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrStorage              = errors.New("storage failure")
)

// Outcome is the metric label for an admission attempt.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrFacilityNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateReservation):
		return "duplicate"
	case errors.Is(err, ErrSlotFull):
		return "full"
	default:
		return "error"
	}
}
