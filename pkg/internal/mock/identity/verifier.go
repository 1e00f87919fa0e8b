/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"context"
	"sync"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

// MockVerifier is a mock identity verifier recording the method sets it was called with.
type MockVerifier struct {
	VerifyValue *siop.ResolvedIdentity
	VerifyErr   error

	mu      sync.Mutex
	methods []siop.AcceptableMethods
}

// VerifySignedToken returns VerifyValue or VerifyErr.
func (m *MockVerifier) VerifySignedToken(_ context.Context, _, _ string,
	methods siop.AcceptableMethods) (*siop.ResolvedIdentity, error) {
	m.mu.Lock()
	m.methods = append(m.methods, methods)
	m.mu.Unlock()

	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}

	return m.VerifyValue, nil
}

// Calls returns the method sets of the calls made so far.
func (m *MockVerifier) Calls() []siop.AcceptableMethods {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]siop.AcceptableMethods(nil), m.methods...)
}
