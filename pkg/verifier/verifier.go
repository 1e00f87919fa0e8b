/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/siop-agent/pkg/internal/common/adapterutil"
	"github.com/trustbloc/siop-agent/pkg/request"
	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/verifier")

// IdentityVerifier verifies a signed request object against the identity document of its signer.
// It fails with siop.ErrSignatureInvalid, siop.ErrIdentityUnresolvable or siop.ErrNonceMismatch.
type IdentityVerifier interface {
	VerifySignedToken(ctx context.Context, token, nonce string,
		methods siop.AcceptableMethods) (*siop.ResolvedIdentity, error)
}

// Verifier turns decoded authentication requests into verified requests.
type Verifier struct {
	identity       IdentityVerifier
	defaultMethods []string
	now            func() time.Time
}

// Opt configures a Verifier.
type Opt func(v *Verifier)

// WithClock sets the clock VerifiedAt is read from.
func WithClock(now func() time.Time) Opt {
	return func(v *Verifier) {
		v.now = now
	}
}

// New returns a Verifier. The identity methods of config apply to requests that declare none.
func New(identity IdentityVerifier, config siop.Config, opts ...Opt) *Verifier {
	v := &Verifier{
		identity:       identity,
		defaultMethods: config.Methods(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

type verifyOpts struct {
	method string
}

// VerifyOpt constrains a single verification.
type VerifyOpt func(o *verifyOpts)

// WithIdentityMethod restricts verification to one DID method. The request must declare the method
// when it declares any.
func WithIdentityMethod(method string) VerifyOpt {
	return func(o *verifyOpts) {
		o.method = method
	}
}

// AcceptableMethods returns the identity methods the request token may be signed with:
//  1. the methods the request declares, narrowed to WithIdentityMethod when given;
//  2. the WithIdentityMethod method;
//  3. the methods of the configuration;
//  4. any method.
func (v *Verifier) AcceptableMethods(req *siop.AuthenticationRequest, opts ...VerifyOpt) (siop.AcceptableMethods,
	error) {
	o := &verifyOpts{}

	for _, opt := range opts {
		opt(o)
	}

	switch {
	case len(req.RequestedIdentityMethods) > 0:
		if o.method == "" {
			return siop.OnlyIdentityMethods(req.RequestedIdentityMethods...), nil
		}

		if !adapterutil.StringsContains(o.method, req.RequestedIdentityMethods) {
			return siop.AcceptableMethods{}, fmt.Errorf("%w: %s is not requested, expected one of %v",
				siop.ErrUnsupportedIdentityMethod, o.method, req.RequestedIdentityMethods)
		}

		return siop.OnlyIdentityMethods(o.method), nil
	case o.method != "":
		return siop.OnlyIdentityMethods(o.method), nil
	case len(v.defaultMethods) > 0:
		return siop.OnlyIdentityMethods(v.defaultMethods...), nil
	default:
		logger.Warnf("request declares no identity methods and none are configured: accepting any method")

		return siop.AnyIdentityMethod(), nil
	}
}

// Verify verifies the request token and binds the resolved identity of its signer to the request.
// Every parameter the token signs must carry the signed value. Errors of the identity verifier are returned
// as is. Nothing is retried.
func (v *Verifier) Verify(ctx context.Context, req *siop.AuthenticationRequest,
	opts ...VerifyOpt) (*siop.VerifiedRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", siop.ErrMalformedRequest)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	methods, err := v.AcceptableMethods(req, opts...)
	if err != nil {
		return nil, err
	}

	identity, err := v.identity.VerifySignedToken(ctx, req.Token, req.Nonce, methods)
	if err != nil {
		return nil, err
	}

	if identity == nil {
		return nil, fmt.Errorf("%w: no identity verified the request object", siop.ErrIdentityUnresolvable)
	}

	if err = request.CheckSignedParameters(req); err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrSignatureInvalid, err.Error())
	}

	logger.Infof("verified authentication request of %s", identity.ID)

	return &siop.VerifiedRequest{
		Request:    req,
		Identity:   identity,
		VerifiedAt: v.now(),
	}, nil
}
