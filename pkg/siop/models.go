/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package siop

import (
	"time"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
)

// Location is the slot of the authentication response a presentation is submitted in.
type Location string

const (
	// LocationIDToken submits the presentation inside the id_token.
	LocationIDToken Location = "id_token"
	// LocationVPToken submits the presentation in the vp_token response parameter.
	LocationVPToken Location = "vp_token"
)

// FormatLDPVP is the format tag of a linked data proof verifiable presentation.
const FormatLDPVP = "ldp_vp"

// QRCodeValues are scanned by the holder to start a flow with a relying party.
type QRCodeValues struct {
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

// PresentationDefinitionRef is a presentation definition tagged with the location its submission goes to.
type PresentationDefinitionRef struct {
	Location   Location                         `json:"location"`
	Definition *presexch.PresentationDefinition `json:"presentation_definition"`
}

// AuthenticationRequest is a decoded SIOP authentication request. It is not modified once decoded.
type AuthenticationRequest struct {
	Token                    string
	Nonce                    string
	State                    string
	ClientID                 string
	ResponseMode             string
	ResponseDestination      string
	RequestedIdentityMethods []string
	PresentationDefinitions  []*PresentationDefinitionRef
	Registration             map[string]interface{}
}

// Audience returns the audience of the response to this request.
func (r *AuthenticationRequest) Audience() string {
	if r.ClientID != "" {
		return r.ClientID
	}

	return r.ResponseDestination
}

// ResolvedIdentity is the identity document the request token was verified against.
type ResolvedIdentity struct {
	ID                  string
	AlsoKnownAs         []string
	KeyID               string
	VerificationMethods []did.VerificationMethod
	Document            *did.Doc
}

// VerifiedRequest is an authentication request whose signature and nonce have been verified.
type VerifiedRequest struct {
	Request    *AuthenticationRequest
	Identity   *ResolvedIdentity
	VerifiedAt time.Time
}

// Submission is the presentation satisfying one presentation definition.
type Submission struct {
	Location     Location
	Format       string
	DefinitionID string
	Presentation *verifiable.Presentation
}

// RequestDetails is what the holder is shown before consenting to a response.
type RequestDetails struct {
	ID          string
	AlsoKnownAs []string
	Submissions []*Submission
}
