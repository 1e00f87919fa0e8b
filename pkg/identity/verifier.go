/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	"github.com/trustbloc/edge-core/pkg/log"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/crypto"
	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/identity")

const defaultLeeway = time.Minute

type requestClaims struct {
	jwt.Claims
	Nonce string `json:"nonce"`
}

// DIDVerifier verifies request objects signed with a verification method of the requester's DID.
type DIDVerifier struct {
	registry vdrapi.Registry
	now      func() time.Time
	leeway   time.Duration
}

// Opt configures a DIDVerifier.
type Opt func(v *DIDVerifier)

// WithClock sets the clock time based claims are validated against.
func WithClock(now func() time.Time) Opt {
	return func(v *DIDVerifier) {
		v.now = now
	}
}

// WithLeeway sets the clock skew tolerated on exp, nbf and iat.
func WithLeeway(d time.Duration) Opt {
	return func(v *DIDVerifier) {
		v.leeway = d
	}
}

// New returns a DIDVerifier resolving DIDs with the registry.
func New(registry vdrapi.Registry, opts ...Opt) *DIDVerifier {
	v := &DIDVerifier{
		registry: registry,
		now:      time.Now,
		leeway:   defaultLeeway,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifySignedToken verifies the signature of token against the DID document of its signer and checks that
// the token carries nonce. The signer's DID method must be one of methods.
func (v *DIDVerifier) VerifySignedToken(ctx context.Context, token, nonce string,
	methods siop.AcceptableMethods) (*siop.ResolvedIdentity, error) {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("%w: parse request object: %s", siop.ErrSignatureInvalid, err.Error())
	}

	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected one signature", siop.ErrSignatureInvalid)
	}

	claims := &requestClaims{}

	if err = json.Unmarshal(jws.UnsafePayloadWithoutVerification(), claims); err != nil {
		return nil, fmt.Errorf("%w: parse request object claims: %s", siop.ErrSignatureInvalid, err.Error())
	}

	kid := jws.Signatures[0].Protected.KeyID
	if kid == "" {
		return nil, fmt.Errorf("%w: request object has no kid", siop.ErrSignatureInvalid)
	}

	kid = crypto.AbsoluteMethodID(claims.Issuer, kid)

	didID, _, err := crypto.SplitVerificationMethod(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrIdentityUnresolvable, err.Error())
	}

	doc, err := v.resolve(ctx, didID, methods)
	if err != nil {
		return nil, err
	}

	vm, ok := crypto.FindVerificationMethod(doc, kid)
	if !ok {
		return nil, fmt.Errorf("%w: verification method %s not found in %s", siop.ErrSignatureInvalid, kid, doc.ID)
	}

	if err = crypto.VerifyJWS(token, vm, didID); err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrSignatureInvalid, err.Error())
	}

	if err = claims.ValidateWithLeeway(jwt.Expected{Time: v.now()}, v.leeway); err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrSignatureInvalid, err.Error())
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("%w: request object nonce does not match the request", siop.ErrNonceMismatch)
	}

	logger.Debugf("verified request object signed by %s", kid)

	return &siop.ResolvedIdentity{
		ID:                  doc.ID,
		AlsoKnownAs:         alsoKnownAs(doc),
		KeyID:               kid,
		VerificationMethods: doc.VerificationMethod,
		Document:            doc,
	}, nil
}

func (v *DIDVerifier) resolve(ctx context.Context, didID string, methods siop.AcceptableMethods) (*did.Doc, error) {
	parsed, err := did.Parse(didID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", siop.ErrIdentityUnresolvable, err.Error())
	}

	if !methods.Accepts(parsed.Method) {
		return nil, fmt.Errorf("%w: did method %q is not one of [%s]", siop.ErrIdentityUnresolvable,
			parsed.Method, methods)
	}

	type result struct {
		doc *did.DocResolution
		err error
	}

	ch := make(chan result, 1)

	go func() {
		doc, resolveErr := v.registry.Resolve(didID)
		ch <- result{doc: doc, err: resolveErr}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %s", siop.ErrIdentityUnresolvable, didID, r.err.Error())
		}

		if r.doc == nil || r.doc.DIDDocument == nil {
			return nil, fmt.Errorf("%w: resolve %s: empty document", siop.ErrIdentityUnresolvable, didID)
		}

		return r.doc.DIDDocument, nil
	}
}

func alsoKnownAs(doc *did.Doc) []string {
	raw, err := doc.JSONBytes()
	if err != nil {
		logger.Warnf("failed to read alsoKnownAs of %s: %s", doc.ID, err)

		return nil
	}

	aliases := struct {
		AlsoKnownAs []string `json:"alsoKnownAs"`
	}{}

	if err = json.Unmarshal(raw, &aliases); err != nil {
		logger.Warnf("failed to read alsoKnownAs of %s: %s", doc.ID, err)

		return nil
	}

	return aliases.AlsoKnownAs
}
