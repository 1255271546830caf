package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/skybtp/crewboard/pkg/api/client"
)

var (
	// ErrLoad wraps any failure to fetch the authoritative snapshot.
	ErrLoad = errors.New("roster: load failed")
	// ErrCapacityExceeded means the target roster is at capacity.
	ErrCapacityExceeded = errors.New("roster: capacity exceeded")
	// ErrNotFound means the team leader or collaborator is unknown.
	ErrNotFound = errors.New("roster: not found")
	// ErrAlreadyAssigned means the collaborator sits on another roster.
	ErrAlreadyAssigned = errors.New("roster: collaborator already assigned")
	// ErrBusy means another operation on the same collaborator or leader is in flight.
	ErrBusy = errors.New("roster: operation in progress")
	// ErrDeclined means the confirmer refused a destructive change.
	ErrDeclined = errors.New("roster: change declined")
)

// CapacityError is returned when the local count already reached capacity.
type CapacityError struct {
	TeamLeaderID string
	Capacity     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("roster: team leader %s is full (maximum %d collaborators)", e.TeamLeaderID, e.Capacity)
}

// Is matches ErrCapacityExceeded.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// RemoteError is a rejection from the authority.
type RemoteError struct {
	Op     string
	Status int
	Code   string
	Detail string
	Err    error
	kind   error
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("roster: %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("roster: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the classification sentinel and the transport error.
func (e *RemoteError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.Err}
	}
	return []error{e.kind, e.Err}
}

func mapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("roster: %s: %w", op, err)
	}
	remote := &RemoteError{Op: op, Err: err}
	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		remote.Status = apiErr.Status
		remote.Code = apiErr.Code
		remote.Detail = apiErr.Message
	}
	switch {
	case client.IsRosterFull(err):
		remote.kind = ErrCapacityExceeded
	case client.IsAlreadyAssigned(err):
		remote.kind = ErrAlreadyAssigned
	case client.IsNotFound(err):
		remote.kind = ErrNotFound
	}
	return remote
}

// Describe turns an error returned by the board into a notice for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	detail := ""
	var remote *RemoteError
	if errors.As(err, &remote) {
		detail = remote.Detail
	}
	var capErr *CapacityError
	switch {
	case errors.As(err, &capErr):
		return fmt.Sprintf("This team is full: maximum %d collaborators per team leader.", capErr.Capacity)
	case errors.Is(err, ErrCapacityExceeded):
		if detail != "" {
			return "This team is full: " + detail
		}
		return "This team is full."
	case errors.Is(err, ErrAlreadyAssigned):
		return "This collaborator already belongs to another team."
	case errors.Is(err, ErrBusy):
		return "Another change to this team is still in progress. Try again in a moment."
	case errors.Is(err, ErrDeclined):
		return "Cancelled."
	case errors.Is(err, ErrLoad):
		return "Could not load teams: " + withDetail(detail, err)
	case errors.Is(err, ErrNotFound):
		if detail != "" {
			return "Not found: " + detail
		}
		return "Team leader or collaborator not found."
	}
	return "The change failed: " + withDetail(detail, err)
}

func withDetail(detail string, err error) string {
	if detail != "" {
		return detail
	}
	return err.Error()
}
