/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package siop

import (
	"errors"
	"fmt"
)

// Decode errors.
var (
	// ErrMalformedRequest is returned when a request payload misses required fields or does not parse.
	ErrMalformedRequest = errors.New("malformed request")
)

// Verification errors. These are terminal for a flow and are never retried.
var (
	ErrSignatureInvalid          = errors.New("signature invalid")
	ErrIdentityUnresolvable      = errors.New("identity unresolvable")
	ErrNonceMismatch             = errors.New("nonce mismatch")
	ErrUnsupportedIdentityMethod = errors.New("unsupported identity method")
)

// Matching errors.
var (
	ErrDefinitionInvalid     = errors.New("presentation definition invalid")
	ErrNoMatchingCredentials = errors.New("no matching credentials")
)

// Delivery errors.
var (
	ErrResponseRejected = errors.New("response rejected")
	ErrTransport        = errors.New("transport error")
)

// NoMatchingCredentialsError identifies the presentation definition the held credentials could not satisfy.
type NoMatchingCredentialsError struct {
	DefinitionID string
	Location     Location
	Err          error
}

func (e *NoMatchingCredentialsError) Error() string {
	msg := fmt.Sprintf("%s for presentation definition %q (%s)", ErrNoMatchingCredentials, e.DefinitionID, e.Location)
	if e.Err != nil && !errors.Is(e.Err, ErrNoMatchingCredentials) {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is reports ErrNoMatchingCredentials as the kind of this error.
func (e *NoMatchingCredentialsError) Is(target error) bool {
	return target == ErrNoMatchingCredentials
}

// Unwrap returns the evaluation error.
func (e *NoMatchingCredentialsError) Unwrap() error {
	return e.Err
}

// ResponseRejectedError carries the status and message a relying party rejected a response with.
type ResponseRejectedError struct {
	StatusCode int
	Message    string
}

func (e *ResponseRejectedError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrResponseRejected, e.StatusCode, e.Message)
}

// Is reports ErrResponseRejected as the kind of this error.
func (e *ResponseRejectedError) Is(target error) bool {
	return target == ErrResponseRejected
}
