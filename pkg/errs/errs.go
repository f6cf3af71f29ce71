package errs

import "errors"

// Sentinel errors for the sync core. Handlers map these onto HTTP status
// codes; internal callers test them with errors.Is.
var (
	ErrChannelNotFound     = errors.New("channel not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrNotMember           = errors.New("not a channel member")
	ErrNotAdmin            = errors.New("not a channel admin")
	ErrNoPartner           = errors.New("no chat partner provided")
	ErrNotGroupChannel     = errors.New("operation requires a group channel")
	ErrTooManyParticipants = errors.New("too many participants")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrTimeout             = errors.New("operation timed out")
)

// IsTransient reports whether the error is worth retrying with backoff.
// Validation failures and not-found conditions are never transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
