package driver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrReservationTooOld is returned when the requested start date is
	// already in the past.
	ErrReservationTooOld = errors.New("reservation start is in the past")

	// ErrJobFailed is returned when a job enters the error state.
	ErrJobFailed = errors.New("job failed")

	// ErrWaitTimeout is returned when jobs do not all run before the wait
	// deadline.
	ErrWaitTimeout = errors.New("timed out waiting for jobs to run")

	// ErrNotReserved is returned by operations that need reserved jobs.
	ErrNotReserved = errors.New("no reservation")
)

// InvalidReservationTimeError is returned when the backend refuses the
// requested start date. Hint, when set, is the earliest start the backend
// would accept.
type InvalidReservationTimeError struct {
	Site string
	Hint time.Time
}

func (e *InvalidReservationTimeError) Error() string {
	if e.Hint.IsZero() {
		return fmt.Sprintf("site %s refused the reservation time", e.Site)
	}
	return fmt.Sprintf("site %s refused the reservation time, next possible start is %s",
		e.Site, e.Hint.UTC().Format(time.RFC3339))
}

// ReservationTimeHint reports whether err is a refused start date and
// returns the backend's hint, which may be zero.
func ReservationTimeHint(err error) (time.Time, bool) {
	var rt *InvalidReservationTimeError
	if errors.As(err, &rt) {
		return rt.Hint, true
	}
	if errors.Is(err, ErrReservationTooOld) {
		return time.Time{}, true
	}
	return time.Time{}, false
}
