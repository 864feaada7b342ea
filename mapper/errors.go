package mapper

import "github.com/pkg/errors"

// PreconditionViolated is returned when a caller-supplied precondition is
// broken: an invalid Config field, or SetMap called with ComputeProbDynamic
// on a cloud lacking a normals descriptor.
type PreconditionViolated struct {
	msg string
}

func (e *PreconditionViolated) Error() string { return e.msg }

func newPreconditionViolated(format string, args ...interface{}) error {
	return &PreconditionViolated{msg: errors.Errorf(format, args...).Error()}
}

// CollaboratorFailed wraps an error raised by a filter, the ICP operator, or
// the k-NN index during ProcessInput. The wrapped error is reachable with
// errors.Cause / errors.Unwrap.
type CollaboratorFailed struct {
	Stage string
	Err   error
}

func (e *CollaboratorFailed) Error() string {
	return errors.Wrapf(e.Err, "collaborator failed during %s", e.Stage).Error()
}

func (e *CollaboratorFailed) Unwrap() error { return e.Err }

func collaboratorFailed(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorFailed{Stage: stage, Err: err}
}
