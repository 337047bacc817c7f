package refresh

import (
	"errors"
	"fmt"
)

// OutcomeKind classifies the result of a rotation attempt.
type OutcomeKind uint8

const (
	// OutcomeInvalid covers unknown, revoked, and subject-mismatched values.
	// It is the zero value so an unset Outcome fails closed.
	OutcomeInvalid OutcomeKind = iota
	OutcomeRotated
	OutcomeExpired
	OutcomeReuseDetected
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRotated:
		return "rotated"
	case OutcomeExpired:
		return "expired"
	case OutcomeReuseDetected:
		return "reuse_detected"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "invalid"
	}
}

// Outcome is the result of Rotator.Rotate.
type Outcome struct {
	Kind OutcomeKind
	// Next is the replacement token, set only for OutcomeRotated.
	Next *Record
	// Presented is the stored record of the presented value, when one was found.
	Presented *Record
	// RevokedCount is the number of tokens revoked by reuse handling.
	RevokedCount int
	// Cause carries the underlying failure for OutcomeUnavailable, or a
	// revocation failure during OutcomeReuseDetected.
	Cause error
}

// Err maps the outcome onto the package's error taxonomy. It returns nil only
// for OutcomeRotated.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeRotated:
		return nil
	case OutcomeExpired:
		return ErrTokenExpired
	case OutcomeReuseDetected:
		if o.Cause != nil {
			return errors.Join(ErrTokenReuseDetected, o.Cause)
		}
		return ErrTokenReuseDetected
	case OutcomeUnavailable:
		if o.Cause == nil {
			return ErrStorageUnavailable
		}
		if errors.Is(o.Cause, ErrStorageUnavailable) {
			return o.Cause
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, o.Cause)
	default:
		return ErrTokenInvalid
	}
}
