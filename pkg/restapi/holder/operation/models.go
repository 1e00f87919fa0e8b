/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"encoding/json"

	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
)

// AuthRequest is the body of the holder endpoints.
type AuthRequest struct {
	// QRCode is the content of the relying party's QR code: redirectUrl=...&stateId=... or its JSON form.
	QRCode string `json:"qrCode"`
	// Credentials are the held credentials the presentations are selected from.
	Credentials []json.RawMessage `json:"credentials,omitempty"`
	// DIDMethod restricts the identity methods the relying party may use.
	DIDMethod string `json:"didMethod,omitempty"`
}

// Submission is a presentation submitted for one presentation definition.
type Submission struct {
	Location     string                   `json:"location"`
	Format       string                   `json:"format"`
	DefinitionID string                   `json:"definitionId"`
	Presentation *verifiable.Presentation `json:"presentation"`
}

// RequestDetails is the relying party identity and the presentations it gets.
type RequestDetails struct {
	ID          string        `json:"id"`
	AlsoKnownAs []string      `json:"alsoKnownAs,omitempty"`
	Submissions []*Submission `json:"submissions"`
}
