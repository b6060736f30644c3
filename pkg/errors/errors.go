package relay_errors

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every error surfaced by the stores and services wraps exactly one of these.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
	ErrDependency      = errors.New("dependency failure")
)

var (
	ErrInvalidParticipantCount = New(ErrValidation, "invalid number of users")
	ErrNotAGroup               = New(ErrValidation, "conversation is not a group")
	ErrMissingFile             = New(ErrValidation, "no file found")

	ErrNotAParticipant       = New(ErrNotFound, "user is not part of this conversation")
	ErrReplyTargetNotFound   = New(ErrNotFound, "reply message not found")
	ErrReactionNotFound      = New(ErrNotFound, "reaction not found")
	ErrConversationNotFound  = New(ErrNotFound, "conversation not found")
	ErrMessageNotFound       = New(ErrNotFound, "message not found")
	ErrUserNotFound          = New(ErrNotFound, "user not found")
	ErrFriendRequestNotFound = New(ErrNotFound, "friend request not found")

	ErrGroupChatsDisabled  = New(ErrConflict, "group chat not supported")
	ErrUsernameTaken       = New(ErrConflict, "username already exists")
	ErrSelfFriendRequest   = New(ErrConflict, "you can't add yourself as a friend")
	ErrAlreadyFriends      = New(ErrConflict, "already friends")
	ErrFriendRequestExists = New(ErrConflict, "friend request already pending")
	ErrAlreadyOnboarded    = New(ErrConflict, "user already onboarded")
	ErrAlreadyParticipant  = New(ErrConflict, "user is already a member of this conversation")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with the given message that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Validation builds an ad-hoc validation error.
func Validation(format string, args ...interface{}) error {
	return New(ErrValidation, fmt.Sprintf(format, args...))
}

// Dependency marks err as a failure of an external collaborator (store, blob store, broker).
// Errors that already carry a kind are returned unchanged.
func Dependency(err error) error {
	if err == nil || Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDependency, err)
}

// Kind reports which kind err belongs to, or nil when it has none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrConflict,
		ErrUnauthenticated,
		ErrForbidden,
		ErrRateLimited,
		ErrDependency,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// NowPtr returns a pointer to the current UTC time
func NowPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}
