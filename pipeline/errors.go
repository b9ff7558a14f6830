// Package pipeline composes the diffusion schedule, guidance, stepper, and
// decoder into the end-to-end caption+lyrics to audio operation.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fatal generation failures.
type ErrorKind int

const (
	// KindMissingConditioning: the real stepper was selected with no
	// encoder or context inputs.
	KindMissingConditioning ErrorKind = iota + 1
	// KindConditionBatchMismatch: a conditioning tensor has a leading dim
	// that is neither the target batch size nor 1.
	KindConditionBatchMismatch
	// KindInvalidLatentShape: the latent before decode is not rank-3 or has
	// the wrong channel count.
	KindInvalidLatentShape
	// KindInvalidDecodedAudioShape: decoder output is not rank-2 or rank-3.
	KindInvalidDecodedAudioShape
	// KindWeightFormat: unreadable checkpoint, unexpected tensor rank, or
	// unknown key after normalization.
	KindWeightFormat
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingConditioning:
		return "missing conditioning"
	case KindConditionBatchMismatch:
		return "condition batch mismatch"
	case KindInvalidLatentShape:
		return "invalid latent shape"
	case KindInvalidDecodedAudioShape:
		return "invalid decoded audio shape"
	case KindWeightFormat:
		return "weight format"
	default:
		return "unknown"
	}
}

// Error is a classified generation failure. All kinds are fatal to the run;
// none are retried.
type Error struct {
	Kind ErrorKind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Errorf creates a classified error.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapErr classifies an underlying error.
func WrapErr(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf extracts the classification from an error chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
