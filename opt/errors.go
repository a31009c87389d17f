package opt

import (
	"errors"
	"fmt"
)

// ErrorKind tags engine failures so callers branch on the tag instead of
// matching message text.
type ErrorKind int

const (
	// KindConfig marks invalid user input: unknown features, bad relations,
	// low>high, empty categorical domains, model-compatibility violations.
	// Config errors are never retried.
	KindConfig ErrorKind = iota
	// KindInfeasible marks an empty feasible set or empty selected batch.
	// The orchestrator's fallback ladder triggers on this kind only.
	KindInfeasible
	// KindModel marks a failure inside the opaque predictor.
	KindModel
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInfeasible:
		return "infeasible"
	case KindModel:
		return "model"
	}
	return "unknown"
}

// Error is the engine's tagged error type.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func configErrorf(format string, args ...any) error {
	return &Error{Kind: KindConfig, Msg: fmt.Sprintf(format, args...)}
}

func infeasibleErrorf(format string, args ...any) error {
	return &Error{Kind: KindInfeasible, Msg: fmt.Sprintf(format, args...)}
}

func modelErrorf(format string, args ...any) error {
	return &Error{Kind: KindModel, Msg: fmt.Sprintf(format, args...)}
}

// IsInfeasible reports whether err is tagged KindInfeasible.
func IsInfeasible(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindInfeasible
}

// IsConfig reports whether err is tagged KindConfig.
func IsConfig(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConfig
}
