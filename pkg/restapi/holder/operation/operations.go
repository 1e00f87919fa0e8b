/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package operation provides the holder REST features.
package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	"github.com/piprate/json-gold/ld"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/siop-agent/pkg/request"
	"github.com/trustbloc/siop-agent/pkg/restapi"
	commhttp "github.com/trustbloc/siop-agent/pkg/restapi/internal/common/http"
	"github.com/trustbloc/siop-agent/pkg/siop"
	"github.com/trustbloc/siop-agent/pkg/verifier"
)

var logger = log.New("siop-agent/holder")

// constants for endpoints of the holder controller.
const (
	operationID          = "/holder"
	RequestDetailsPath   = operationID + "/request"
	AuthResponsePath     = operationID + "/response"
	invalidRequestErr    = "invalid request: %s"
	invalidCredentialErr = "invalid credential %d: %s"

	defaultTimeout = 20 * time.Second
)

// Authenticator runs the holder flow.
type Authenticator interface {
	GetAuthenticationRequestFromRP(ctx context.Context, qr *siop.QRCodeValues) (*siop.AuthenticationRequest, error)
	VerifyAuthenticationRequestURI(ctx context.Context, req *siop.AuthenticationRequest,
		didMethod string) (*siop.VerifiedRequest, error)
	GetAuthenticationRequestDetails(ctx context.Context, verified *siop.VerifiedRequest,
		credentials []*verifiable.Credential) (*siop.RequestDetails, error)
	Authenticate(ctx context.Context, qr *siop.QRCodeValues, credentials []*verifiable.Credential,
		opts ...verifier.VerifyOpt) (*siop.RequestDetails, error)
}

// Config defines configuration for the holder operations.
type Config struct {
	Authenticator  Authenticator
	DocumentLoader ld.DocumentLoader
	// VDR resolves the keys of credential proofs. Proofs are not checked when it is nil.
	VDR     vdrapi.Registry
	Timeout time.Duration
}

// Operation is REST service operation controller for the holder features.
type Operation struct {
	authenticator Authenticator
	credOpts      []verifiable.CredentialOpt
	timeout       time.Duration
}

// New returns new holder REST operations.
func New(config *Config) (*Operation, error) {
	if config.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}

	credOpts := []verifiable.CredentialOpt{verifiable.WithJSONLDDocumentLoader(config.DocumentLoader)}

	if config.VDR != nil {
		credOpts = append(credOpts,
			verifiable.WithPublicKeyFetcher(verifiable.NewVDRKeyResolver(config.VDR).PublicKeyFetcher()))
	} else {
		credOpts = append(credOpts, verifiable.WithDisabledProofCheck())
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Operation{
		authenticator: config.Authenticator,
		credOpts:      credOpts,
		timeout:       timeout,
	}, nil
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []restapi.Handler {
	return []restapi.Handler{
		restapi.NewHTTPHandler(RequestDetailsPath, http.MethodPost, o.requestDetailsHandler),
		restapi.NewHTTPHandler(AuthResponsePath, http.MethodPost, o.authResponseHandler),
	}
}

// requestDetailsHandler fetches and verifies the relying party's request and returns what would be presented.
func (o *Operation) requestDetailsHandler(rw http.ResponseWriter, r *http.Request) {
	qr, credentials, didMethod, ok := o.readRequest(rw, r, RequestDetailsPath)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), o.timeout)
	defer cancel()

	req, err := o.authenticator.GetAuthenticationRequestFromRP(ctx, qr)
	if err != nil {
		o.writeFlowError(rw, err, RequestDetailsPath)

		return
	}

	verified, err := o.authenticator.VerifyAuthenticationRequestURI(ctx, req, didMethod)
	if err != nil {
		o.writeFlowError(rw, err, RequestDetailsPath)

		return
	}

	details, err := o.authenticator.GetAuthenticationRequestDetails(ctx, verified, credentials)
	if err != nil {
		o.writeFlowError(rw, err, RequestDetailsPath)

		return
	}

	commhttp.WriteResponseWithLog(rw, http.StatusOK, toResponse(details), RequestDetailsPath, logger)
}

// authResponseHandler runs the whole flow and delivers the response to the relying party.
func (o *Operation) authResponseHandler(rw http.ResponseWriter, r *http.Request) {
	qr, credentials, didMethod, ok := o.readRequest(rw, r, AuthResponsePath)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), o.timeout)
	defer cancel()

	var opts []verifier.VerifyOpt

	if didMethod != "" {
		opts = append(opts, verifier.WithIdentityMethod(didMethod))
	}

	details, err := o.authenticator.Authenticate(ctx, qr, credentials, opts...)
	if err != nil {
		o.writeFlowError(rw, err, AuthResponsePath)

		return
	}

	commhttp.WriteResponseWithLog(rw, http.StatusOK, toResponse(details), AuthResponsePath, logger)
}

func (o *Operation) readRequest(rw http.ResponseWriter, r *http.Request,
	endpoint string) (*siop.QRCodeValues, []*verifiable.Credential, string, bool) {
	body := &AuthRequest{}

	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		commhttp.WriteErrorResponseWithLog(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErr, err.Error()), endpoint, logger)

		return nil, nil, "", false
	}

	qr, err := request.ParseQRCode(body.QRCode)
	if err != nil {
		commhttp.WriteErrorResponseWithLog(rw, http.StatusBadRequest,
			fmt.Sprintf(invalidRequestErr, err.Error()), endpoint, logger)

		return nil, nil, "", false
	}

	credentials := make([]*verifiable.Credential, len(body.Credentials))

	for i, raw := range body.Credentials {
		credentials[i], err = verifiable.ParseCredential(raw, o.credOpts...)
		if err != nil {
			commhttp.WriteErrorResponseWithLog(rw, http.StatusBadRequest,
				fmt.Sprintf(invalidCredentialErr, i, err.Error()), endpoint, logger)

			return nil, nil, "", false
		}
	}

	return qr, credentials, body.DIDMethod, true
}

func (o *Operation) writeFlowError(rw http.ResponseWriter, err error, endpoint string) {
	commhttp.WriteErrorResponseWithLog(rw, statusOf(err), err.Error(), endpoint, logger)
}

// statusOf maps the failed stage to the status reported to the wallet.
func statusOf(err error) int {
	switch {
	case errors.Is(err, siop.ErrMalformedRequest), errors.Is(err, siop.ErrDefinitionInvalid):
		return http.StatusBadRequest
	case errors.Is(err, siop.ErrSignatureInvalid), errors.Is(err, siop.ErrIdentityUnresolvable),
		errors.Is(err, siop.ErrNonceMismatch), errors.Is(err, siop.ErrUnsupportedIdentityMethod):
		return http.StatusUnauthorized
	case errors.Is(err, siop.ErrNoMatchingCredentials):
		return http.StatusUnprocessableEntity
	case errors.Is(err, siop.ErrResponseRejected), errors.Is(err, siop.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(details *siop.RequestDetails) *RequestDetails {
	resp := &RequestDetails{
		ID:          details.ID,
		AlsoKnownAs: details.AlsoKnownAs,
		Submissions: make([]*Submission, len(details.Submissions)),
	}

	for i, s := range details.Submissions {
		resp.Submissions[i] = &Submission{
			Location:     string(s.Location),
			Format:       s.Format,
			DefinitionID: s.DefinitionID,
			Presentation: s.Presentation,
		}
	}

	return resp
}
