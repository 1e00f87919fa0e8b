/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package presentationex

import (
	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
)

// Evaluator builds the minimal presentation of held credentials satisfying a presentation definition
// (https://identity.foundation/presentation-exchange/).
//
// Errors wrap siop.ErrDefinitionInvalid when the definition is malformed and siop.ErrNoMatchingCredentials
// when the credentials cannot satisfy it. Implementations must not modify the credentials.
type Evaluator interface {
	Evaluate(definition *presexch.PresentationDefinition,
		credentials []*verifiable.Credential) (*verifiable.Presentation, error)
}
