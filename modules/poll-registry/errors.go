package pollRegistry

import "errors"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidOptions   = errors.New("a poll needs at least two options")
	ErrInvalidDuration  = errors.New("poll duration must be positive")
	ErrInvalidOption    = errors.New("invalid option")
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollEnded        = errors.New("poll has ended")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrFeeDebitFailed   = errors.New("fee debit failed")
	ErrInvalidSignature = errors.New("invalid signature")
)

// IsRejection reports whether err is one of the registry's own rejections, as
// opposed to an operational failure such as a journal write error.
func IsRejection(err error) bool {
	for _, e := range []error{
		ErrUnauthorized,
		ErrInvalidOptions,
		ErrInvalidDuration,
		ErrInvalidOption,
		ErrPollNotFound,
		ErrPollEnded,
		ErrAlreadyVoted,
		ErrFeeDebitFailed,
		ErrInvalidSignature,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
