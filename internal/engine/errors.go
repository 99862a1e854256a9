package engine

import (
	"errors"
	"fmt"
)

// NotFoundError reports an operation referencing an id the registry
// does not know. Activation and consequence lookups treat it as a
// logged no-op; explicit API calls surface it to the caller.
type NotFoundError struct {
	Kind string // "mission", "active mission"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError, unwrapping as
// needed.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrNotSubmittable is returned by SubmitMission while required
// objectives remain incomplete.
var ErrNotSubmittable = errors.New("mission has incomplete required objectives")

// ErrAlreadyRegistered is returned when a definition id is registered
// twice.
var ErrAlreadyRegistered = errors.New("mission already registered")
