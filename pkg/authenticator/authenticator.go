/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authenticator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/siop-agent/pkg/request"
	"github.com/trustbloc/siop-agent/pkg/siop"
	"github.com/trustbloc/siop-agent/pkg/verifier"
)

var logger = log.New("siop-agent/authenticator")

// RequestVerifier verifies decoded authentication requests.
type RequestVerifier interface {
	Verify(ctx context.Context, req *siop.AuthenticationRequest,
		opts ...verifier.VerifyOpt) (*siop.VerifiedRequest, error)
}

// PresentationMatcher selects held credentials for the presentation definitions of a request.
type PresentationMatcher interface {
	Match(ctx context.Context, verified *siop.VerifiedRequest,
		credentials []*verifiable.Credential) ([]*siop.Submission, error)
}

// ResponseSender builds and delivers the authentication response.
type ResponseSender interface {
	BuildAndSend(ctx context.Context, verified *siop.VerifiedRequest, submissions []*siop.Submission) error
}

// RequestFetcher fetches the authentication request a relying party published.
type RequestFetcher interface {
	FetchRequest(ctx context.Context, requestURL string) ([]byte, error)
}

// Config holds the stages of the holder flow.
type Config struct {
	Verifier RequestVerifier
	Matcher  PresentationMatcher
	Sender   ResponseSender
	Fetcher  RequestFetcher
}

// Authenticator runs the holder side of a self-issued authentication: it fetches and verifies the relying
// party's request, selects the credentials to present and delivers the signed response.
type Authenticator struct {
	verifier RequestVerifier
	matcher  PresentationMatcher
	sender   ResponseSender
	fetcher  RequestFetcher
}

// New returns a new Authenticator.
func New(config *Config) (*Authenticator, error) {
	if config.Verifier == nil || config.Matcher == nil || config.Sender == nil || config.Fetcher == nil {
		return nil, errors.New("verifier, matcher, sender and fetcher are required")
	}

	return &Authenticator{
		verifier: config.Verifier,
		matcher:  config.Matcher,
		sender:   config.Sender,
		fetcher:  config.Fetcher,
	}, nil
}

// DecodeRequest decodes an authentication request.
func (a *Authenticator) DecodeRequest(raw []byte) (*siop.AuthenticationRequest, error) {
	return request.Decode(raw)
}

// VerifyRequest verifies the request signature against the requester's identity and its nonce.
func (a *Authenticator) VerifyRequest(ctx context.Context, req *siop.AuthenticationRequest,
	opts ...verifier.VerifyOpt) (*siop.VerifiedRequest, error) {
	return a.verifier.Verify(ctx, req, opts...)
}

// MatchPresentations returns one submission per presentation definition of the request.
func (a *Authenticator) MatchPresentations(ctx context.Context, verified *siop.VerifiedRequest,
	credentials []*verifiable.Credential) ([]*siop.Submission, error) {
	return a.matcher.Match(ctx, verified, credentials)
}

// BuildAndSendResponse signs the response carrying the submissions and delivers it.
func (a *Authenticator) BuildAndSendResponse(ctx context.Context, verified *siop.VerifiedRequest,
	submissions []*siop.Submission) error {
	return a.sender.BuildAndSend(ctx, verified, submissions)
}

// GetAuthenticationRequestFromRP fetches and decodes the request referenced by the scanned QR code values.
func (a *Authenticator) GetAuthenticationRequestFromRP(ctx context.Context,
	qr *siop.QRCodeValues) (*siop.AuthenticationRequest, error) {
	requestURL, err := request.FetchURL(qr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrMalformedRequest, err.Error())
	}

	logger.Debugf("fetching authentication request from %s", requestURL)

	raw, err := a.fetcher.FetchRequest(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	return request.Decode(raw)
}

// VerifyAuthenticationRequestURI verifies a decoded request. A non empty didMethod restricts the identity
// methods the requester may use.
func (a *Authenticator) VerifyAuthenticationRequestURI(ctx context.Context, req *siop.AuthenticationRequest,
	didMethod string) (*siop.VerifiedRequest, error) {
	var opts []verifier.VerifyOpt

	if didMethod != "" {
		opts = append(opts, verifier.WithIdentityMethod(didMethod))
	}

	return a.VerifyRequest(ctx, req, opts...)
}

// GetAuthenticationRequestDetails returns what the holder consents to: the requester's identity and the
// presentations that would be submitted.
func (a *Authenticator) GetAuthenticationRequestDetails(ctx context.Context, verified *siop.VerifiedRequest,
	credentials []*verifiable.Credential) (*siop.RequestDetails, error) {
	submissions, err := a.MatchPresentations(ctx, verified, credentials)
	if err != nil {
		return nil, err
	}

	details := &siop.RequestDetails{Submissions: submissions}

	if verified.Identity != nil {
		details.ID = verified.Identity.ID
		details.AlsoKnownAs = verified.Identity.AlsoKnownAs
	}

	return details, nil
}

// SendAuthResponse delivers the response with the presentations of details.
func (a *Authenticator) SendAuthResponse(ctx context.Context, verified *siop.VerifiedRequest,
	details *siop.RequestDetails) error {
	var submissions []*siop.Submission

	if details != nil {
		submissions = details.Submissions
	}

	return a.BuildAndSendResponse(ctx, verified, submissions)
}

// Authenticate runs the whole flow for the scanned QR code values and returns the details that were sent.
func (a *Authenticator) Authenticate(ctx context.Context, qr *siop.QRCodeValues,
	credentials []*verifiable.Credential, opts ...verifier.VerifyOpt) (*siop.RequestDetails, error) {
	req, err := a.GetAuthenticationRequestFromRP(ctx, qr)
	if err != nil {
		return nil, err
	}

	verified, err := a.VerifyRequest(ctx, req, opts...)
	if err != nil {
		return nil, err
	}

	details, err := a.GetAuthenticationRequestDetails(ctx, verified, credentials)
	if err != nil {
		return nil, err
	}

	if err = a.SendAuthResponse(ctx, verified, details); err != nil {
		return nil, err
	}

	return details, nil
}
