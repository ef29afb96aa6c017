// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind tells the orchestrator whether to abort or continue.
type FailureKind int

const (
	// FailFatal aborts the run; no further phases execute.
	FailFatal FailureKind = iota
	// FailTolerated has been reported to the sink and the run continues.
	FailTolerated
)

func (k FailureKind) String() string {
	if k == FailTolerated {
		return "tolerated"
	}
	return "fatal"
}

// Failure is the typed result of a failed phase step.
type Failure struct {
	Kind    FailureKind
	Phase   Phase
	Message string
	// Hint is operator guidance, e.g. which flag to rerun with.
	Hint  string
	Cause error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Phase != "" {
		b.WriteString(string(f.Phase))
		b.WriteString(": ")
	}
	b.WriteString(f.Message)
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Cause }

// WithHint sets the operator hint and returns f.
func (f *Failure) WithHint(hint string) *Failure {
	f.Hint = hint
	return f
}

// Fatalf builds a fatal failure.
func Fatalf(phase Phase, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: FailFatal, Phase: phase, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Toleratedf builds a tolerated failure.
func Toleratedf(phase Phase, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: FailTolerated, Phase: phase, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsFatal reports whether err is, or wraps, a fatal Failure. Errors that are
// not Failures are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == FailFatal
	}
	return true
}

// HintOf returns the operator hint carried by err, if any.
func HintOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Hint
	}
	return ""
}
