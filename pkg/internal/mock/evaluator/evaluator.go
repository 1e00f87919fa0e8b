/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package evaluator

import (
	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
)

// MockEvaluator is a mock presentation definition evaluator.
type MockEvaluator struct {
	EvaluateValue *verifiable.Presentation
	EvaluateErr   error
	EvaluateFunc  func(*presexch.PresentationDefinition, []*verifiable.Credential) (*verifiable.Presentation, error)
}

// Evaluate calls EvaluateFunc when set, otherwise returns EvaluateValue or EvaluateErr.
func (m *MockEvaluator) Evaluate(definition *presexch.PresentationDefinition,
	credentials []*verifiable.Credential) (*verifiable.Presentation, error) {
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(definition, credentials)
	}

	if m.EvaluateErr != nil {
		return nil, m.EvaluateErr
	}

	return m.EvaluateValue, nil
}
