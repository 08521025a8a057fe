// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package apperr defines the error taxonomy shared by the acquisition,
// prediction and reporting stages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// Unknown is any error that was not classified.
	Unknown Kind = iota
	// NotFound a local file does not exist.
	NotFound
	// InvalidImage a file exists but cannot be decoded as an image.
	InvalidImage
	// Download the remote image could not be fetched (non-200, transport).
	Download
	// ValidationInput malformed operator input (menu choice, number).
	ValidationInput
	// IOWrite a CSV, map or plot could not be written.
	IOWrite
	// FatalWeightsLoad the model weights are missing or corrupt.
	FatalWeightsLoad
)

var kindNames = map[Kind]string{
	Unknown:          "unknown",
	NotFound:         "not found",
	InvalidImage:     "invalid image",
	Download:         "download",
	ValidationInput:  "invalid input",
	IOWrite:          "write",
	FatalWeightsLoad: "weights load",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified error. Message is operator facing (French), Err is
// the underlying cause if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error without cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
