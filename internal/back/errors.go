package back

// Error is an expected outcome of an engine operation that is not a success.
// Its Code is stable and meant to be surfaced to API callers as-is.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is match on Code so detailed copies still match the
// sentinel they were derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) withMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// nolint:gochecknoglobals
var (
	ErrNotFound            = &Error{"not_found", "photo not found"}
	ErrPhotoInactive       = &Error{"photo_inactive", "photo was deleted or its owner is banned"}
	ErrInvalidVote         = &Error{"invalid_vote", "invalid vote"}
	ErrInvalidArgument     = &Error{"invalid_argument", "invalid argument"}
	ErrSelfVote            = &Error{"self_vote", "you can't vote on your own photos"}
	ErrDuplicateVote       = &Error{"duplicate_vote", "you already voted on these two photos a moment ago"}
	ErrUnavailable         = &Error{"not_enough_photos", "not enough photos to compare, upload more"}
	ErrConcurrencyConflict = &Error{"concurrency_conflict", "too many concurrent votes, try again"}
)
