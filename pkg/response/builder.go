/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	"github.com/trustbloc/edge-core/pkg/log"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/response")

// SelfIssuedIssuer is the issuer of self-issued id tokens.
const SelfIssuedIssuer = "https://self-issued.me/v2"

// response form parameters.
const (
	paramIDToken = "id_token"
	paramVPToken = "vp_token"
	paramState   = "state"

	submissionProperty = "presentation_submission"
)

// Signer signs the id token with a key of the holder.
type Signer interface {
	SignJWT(claims interface{}, signingKeyID string) (string, error)
}

// PresentationSigner adds a holder proof to a presentation.
type PresentationSigner interface {
	SignPresentation(vp *verifiable.Presentation, signingKeyID, challenge,
		domain string) (*verifiable.Presentation, error)
}

// Deliverer delivers the response form to the relying party.
type Deliverer interface {
	Deliver(ctx context.Context, destination string, form url.Values) error
}

type vpTokenClaim struct {
	PresentationSubmission interface{} `json:"presentation_submission,omitempty"`
}

// idTokenClaims are the claims of the self-issued id token.
type idTokenClaims struct {
	jwt.Claims
	DID                     string                     `json:"did"`
	Nonce                   string                     `json:"nonce"`
	State                   string                     `json:"state,omitempty"`
	Registration            map[string]interface{}     `json:"registration,omitempty"`
	RegistrationURI         string                     `json:"registration_uri,omitempty"`
	VerifiablePresentations []*verifiable.Presentation `json:"verifiable_presentations,omitempty"`
	VPToken                 []*vpTokenClaim            `json:"_vp_token,omitempty"`
}

// Opt configures the builder.
type Opt func(b *Builder)

// WithClock sets the clock issuance and expiry are computed from.
func WithClock(now func() time.Time) Opt {
	return func(b *Builder) {
		b.now = now
	}
}

// WithPresentationSigner signs every submitted presentation, bound to the request nonce and audience.
func WithPresentationSigner(s PresentationSigner) Opt {
	return func(b *Builder) {
		b.vpSigner = s
	}
}

// Builder assembles signed authentication responses and delivers them.
type Builder struct {
	config    siop.Config
	signer    Signer
	deliverer Deliverer
	vpSigner  PresentationSigner
	now       func() time.Time
}

// New returns a builder for config. The configuration is validated.
func New(config siop.Config, signer Signer, deliverer Deliverer, opts ...Opt) (*Builder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration : %w", err)
	}

	if signer == nil || deliverer == nil {
		return nil, errors.New("signer and deliverer are required")
	}

	b := &Builder{
		config:    config,
		signer:    signer,
		deliverer: deliverer,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Build returns the signed response form for the verified request. Submissions at location id_token are
// embedded in the id token and those at location vp_token are passed in the vp_token parameter.
func (b *Builder) Build(ctx context.Context, verified *siop.VerifiedRequest,
	submissions []*siop.Submission) (url.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if verified == nil || verified.Request == nil {
		return nil, errors.New("verified request is required")
	}

	req := verified.Request

	claims, vpToken, err := b.claims(req, submissions)
	if err != nil {
		return nil, err
	}

	idToken, err := b.signer.SignJWT(claims, b.config.SigningIdentity.KeyID)
	if err != nil {
		return nil, fmt.Errorf("sign id token : %w", err)
	}

	form := url.Values{}
	form.Set(paramIDToken, idToken)

	if req.State != "" {
		form.Set(paramState, req.State)
	}

	if vpToken != nil {
		form.Set(paramVPToken, string(vpToken))
	}

	return form, nil
}

// BuildAndSend builds the response and delivers it to the request's response destination in a single
// attempt. Nothing is sent once ctx is done.
func (b *Builder) BuildAndSend(ctx context.Context, verified *siop.VerifiedRequest,
	submissions []*siop.Submission) error {
	form, err := b.Build(ctx, verified, submissions)
	if err != nil {
		return err
	}

	if err = ctx.Err(); err != nil {
		return err
	}

	destination := verified.Request.ResponseDestination

	if err = b.deliverer.Deliver(ctx, destination, form); err != nil {
		return err
	}

	logger.Infof("authentication response delivered to %s", destination)

	return nil
}

func (b *Builder) claims(req *siop.AuthenticationRequest,
	submissions []*siop.Submission) (*idTokenClaims, []byte, error) {
	issuedAt := b.now()

	claims := &idTokenClaims{
		Claims: jwt.Claims{
			Issuer:   SelfIssuedIssuer,
			Subject:  b.config.SigningIdentity.DID,
			Audience: jwt.Audience{req.Audience()},
			IssuedAt: jwt.NewNumericDate(issuedAt),
			Expiry:   jwt.NewNumericDate(issuedAt.Add(b.config.ExpiresIn)),
			ID:       uuid.New().String(),
		},
		DID:   b.config.SigningIdentity.DID,
		Nonce: req.Nonce,
		State: req.State,
	}

	switch b.config.RegistrationBy {
	case siop.RegistrationByReference:
		claims.RegistrationURI = b.config.RegistrationURI
	default:
		claims.Registration = b.registration()
	}

	var vpToken []*verifiable.Presentation

	for i, s := range submissions {
		if s == nil || s.Presentation == nil {
			return nil, nil, fmt.Errorf("submission %d has no presentation", i)
		}

		vp, err := b.signPresentation(s.Presentation, req)
		if err != nil {
			return nil, nil, err
		}

		switch s.Location {
		case siop.LocationIDToken:
			claims.VerifiablePresentations = append(claims.VerifiablePresentations, vp)
		case siop.LocationVPToken:
			vpToken = append(vpToken, vp)
			claims.VPToken = append(claims.VPToken, &vpTokenClaim{
				PresentationSubmission: vp.CustomFields[submissionProperty],
			})
		default:
			return nil, nil, fmt.Errorf("submission %d: unknown location %q", i, s.Location)
		}
	}

	if len(vpToken) == 0 {
		return claims, nil, nil
	}

	var (
		raw []byte
		err error
	)

	if len(vpToken) == 1 {
		raw, err = json.Marshal(vpToken[0])
	} else {
		raw, err = json.Marshal(vpToken)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("marshal vp_token : %w", err)
	}

	return claims, raw, nil
}

func (b *Builder) signPresentation(vp *verifiable.Presentation,
	req *siop.AuthenticationRequest) (*verifiable.Presentation, error) {
	if b.vpSigner == nil {
		return vp, nil
	}

	vp = copyPresentation(vp)
	vp.Holder = b.config.SigningIdentity.DID

	signed, err := b.vpSigner.SignPresentation(vp, b.config.SigningIdentity.KeyID, req.Nonce, req.Audience())
	if err != nil {
		return nil, fmt.Errorf("sign presentation : %w", err)
	}

	return signed, nil
}

// copyPresentation returns a copy of vp that can take a holder and proofs without changing vp.
// The credentials are shared.
func copyPresentation(vp *verifiable.Presentation) *verifiable.Presentation {
	c := *vp

	c.Context = append([]string(nil), vp.Context...)
	c.Type = append([]string(nil), vp.Type...)
	c.Proofs = append([]verifiable.Proof(nil), vp.Proofs...)

	if vp.CustomFields != nil {
		c.CustomFields = make(verifiable.CustomFields, len(vp.CustomFields))

		for k, v := range vp.CustomFields {
			c.CustomFields[k] = v
		}
	}

	return &c
}

// registration is the holder's registration metadata passed by value.
func (b *Builder) registration() map[string]interface{} {
	methods := b.config.Methods()

	supported := make([]string, len(methods))
	for i, m := range methods {
		supported[i] = "did:" + m + ":"
	}

	return map[string]interface{}{
		"did_methods_supported":                 supported,
		"subject_identifier_types_supported":    []string{"did"},
		"id_token_signing_alg_values_supported": []string{"EdDSA", "ES256"},
		"response_modes_supported":              []string{string(b.config.ResponseMode)},
		"vp_formats": map[string]interface{}{
			siop.FormatLDPVP: map[string]interface{}{"proof_type": []string{"Ed25519Signature2018"}},
		},
	}
}
