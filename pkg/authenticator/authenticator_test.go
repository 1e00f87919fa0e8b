/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package authenticator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/hyperledger/aries-framework-go/pkg/doc/util"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	vdrmock "github.com/hyperledger/aries-framework-go/pkg/mock/vdr"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/crypto"
	"github.com/trustbloc/siop-agent/pkg/identity"
	"github.com/trustbloc/siop-agent/pkg/internal/testutil"
	"github.com/trustbloc/siop-agent/pkg/presentationex"
	"github.com/trustbloc/siop-agent/pkg/request"
	"github.com/trustbloc/siop-agent/pkg/response"
	"github.com/trustbloc/siop-agent/pkg/siop"
	"github.com/trustbloc/siop-agent/pkg/transport"
	"github.com/trustbloc/siop-agent/pkg/verifier"
)

const (
	rpDID     = "did:example:rp"
	holderDID = "did:example:holder"
	stateID   = "abc123"
	nonce     = "n-0S6_WzA2Mj"
)

type relyingParty struct {
	t        *testing.T
	rp       *testutil.RelyingParty
	holder   *did.Doc
	status   int
	methods  []string
	received chan map[string]interface{}
	srv      *httptest.Server
}

func newRelyingParty(t *testing.T, holder *did.Doc, status int, methods ...string) *relyingParty {
	t.Helper()

	r := &relyingParty{
		t:        t,
		rp:       testutil.NewRelyingParty(t, rpDID),
		holder:   holder,
		status:   status,
		methods:  methods,
		received: make(chan map[string]interface{}, 1),
	}

	r.srv = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.srv.Close)

	return r
}

func (r *relyingParty) redirectURL() string {
	return r.srv.URL + "/auth"
}

func (r *relyingParty) handle(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		if req.URL.Query().Get("stateId") != stateID {
			http.Error(w, "unknown state", http.StatusNotFound)

			return
		}

		uri, err := request.EncodeURI(&siop.AuthenticationRequest{
			Token:                    r.rp.Sign(r.t, map[string]interface{}{"iss": r.rp.DID, "nonce": nonce}),
			Nonce:                    nonce,
			State:                    stateID,
			ResponseMode:             "post",
			ResponseDestination:      r.redirectURL(),
			RequestedIdentityMethods: r.methods,
			PresentationDefinitions: []*siop.PresentationDefinitionRef{{
				Location:   siop.LocationIDToken,
				Definition: degreeDefinition(),
			}},
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		_, err = w.Write([]byte(uri))
		require.NoError(r.t, err)
	case http.MethodPost:
		if err := req.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		idToken := req.PostForm.Get("id_token")

		if err := crypto.VerifyJWS(idToken, &r.holder.VerificationMethod[0], r.holder.ID); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)

			return
		}

		parsed, err := jwt.ParseSigned(idToken)
		require.NoError(r.t, err)

		claims := make(map[string]interface{})
		require.NoError(r.t, parsed.UnsafeClaimsWithoutVerification(&claims))

		claims["form_state"] = req.PostForm.Get("state")
		r.received <- claims

		w.WriteHeader(r.status)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func degreeDefinition() *presexch.PresentationDefinition {
	str := "string"

	return &presexch.PresentationDefinition{
		ID: "degree",
		InputDescriptors: []*presexch.InputDescriptor{{
			ID:     "degree_input",
			Schema: []*presexch.Schema{{URI: "https://www.w3.org/2018/credentials#VerifiableCredential"}},
			Constraints: &presexch.Constraints{
				Fields: []*presexch.Field{{
					Path:   []string{"$.credentialSubject.degree.type"},
					Filter: &presexch.Filter{Type: &str, Const: "BachelorDegree"},
				}},
			},
		}},
	}
}

func credentials() []*verifiable.Credential {
	return []*verifiable.Credential{{
		Context: []string{verifiable.ContextURI},
		Types:   []string{verifiable.VCType},
		ID:      "http://example.edu/credentials/1872",
		Issuer:  verifiable.Issuer{ID: "did:example:76e12ec712ebc6f1c221ebfeb1f"},
		Issued:  util.NewTime(time.Now()),
		Subject: map[string]interface{}{
			"id":     holderDID,
			"degree": map[string]interface{}{"type": "BachelorDegree"},
		},
	}}
}

type stack struct {
	authenticator *Authenticator
	holder        *did.Doc
	registry      *vdrmock.MockVDRegistry
}

func newStack(t *testing.T, rpDoc func() (*did.Doc, error)) *stack {
	t.Helper()

	agent := testutil.Agent(t)
	holder, kid := testutil.HolderDID(t, agent, holderDID)

	registry := &vdrmock.MockVDRegistry{
		ResolveFunc: func(didID string, _ ...vdrapi.DIDMethodOption) (*did.DocResolution, error) {
			if didID == holderDID {
				return &did.DocResolution{DIDDocument: holder}, nil
			}

			doc, err := rpDoc()
			if err != nil {
				return nil, err
			}

			return &did.DocResolution{DIDDocument: doc}, nil
		},
	}

	config := siop.NewConfig(siop.SigningIdentity{DID: holderDID, KeyID: kid}, siop.WithIdentityMethods("example"))
	client := transport.New(transport.WithRetry(0, time.Millisecond))

	signer := crypto.New(agent.KMS(), agent.Crypto(), registry, agent.JSONLDDocumentLoader())

	builder, err := response.New(config, signer, client)
	require.NoError(t, err)

	a, err := New(&Config{
		Verifier: verifier.New(identity.New(registry), config),
		Matcher:  presentationex.NewMatcher(presentationex.NewEvaluator(agent.JSONLDDocumentLoader())),
		Sender:   builder,
		Fetcher:  client,
	})
	require.NoError(t, err)

	return &stack{authenticator: a, holder: holder, registry: registry}
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{})
	require.Error(t, err)
}

func TestAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("response accepted", func(t *testing.T) {
		t.Parallel()

		var rp *relyingParty

		s := newStack(t, func() (*did.Doc, error) { return rp.rp.Doc, nil })
		rp = newRelyingParty(t, s.holder, http.StatusCreated)

		qr, err := request.ParseQRCode(fmt.Sprintf("redirectUrl=%s&stateId=%s", rp.redirectURL(), stateID))
		require.NoError(t, err)

		details, err := s.authenticator.Authenticate(context.Background(), qr, credentials())
		require.NoError(t, err)
		require.Equal(t, rpDID, details.ID)
		require.Len(t, details.Submissions, 1)
		require.Equal(t, "degree", details.Submissions[0].DefinitionID)
		require.Equal(t, siop.LocationIDToken, details.Submissions[0].Location)

		claims := <-rp.received
		require.Equal(t, nonce, claims["nonce"])
		require.Equal(t, holderDID, claims["sub"])
		require.Equal(t, []interface{}{rp.redirectURL()}, claims["aud"])
		require.Equal(t, stateID, claims["form_state"])
		require.Len(t, claims["verifiable_presentations"], 1)
	})

	t.Run("response rejected", func(t *testing.T) {
		t.Parallel()

		var rp *relyingParty

		s := newStack(t, func() (*did.Doc, error) { return rp.rp.Doc, nil })
		rp = newRelyingParty(t, s.holder, http.StatusBadRequest)

		_, err := s.authenticator.Authenticate(context.Background(),
			&siop.QRCodeValues{RedirectURL: rp.redirectURL(), State: stateID}, credentials())
		require.ErrorIs(t, err, siop.ErrResponseRejected)

		var rejected *siop.ResponseRejectedError

		require.True(t, errors.As(err, &rejected))
		require.Equal(t, http.StatusBadRequest, rejected.StatusCode)
		require.Equal(t, "Bad Request", rejected.Message)
	})

	t.Run("no matching credentials", func(t *testing.T) {
		t.Parallel()

		var rp *relyingParty

		s := newStack(t, func() (*did.Doc, error) { return rp.rp.Doc, nil })
		rp = newRelyingParty(t, s.holder, http.StatusCreated)

		_, err := s.authenticator.Authenticate(context.Background(),
			&siop.QRCodeValues{RedirectURL: rp.redirectURL(), State: stateID}, nil)
		require.ErrorIs(t, err, siop.ErrNoMatchingCredentials)
		require.Empty(t, rp.received)
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()

		var rp *relyingParty

		s := newStack(t, func() (*did.Doc, error) { return rp.rp.Doc, nil })
		rp = newRelyingParty(t, s.holder, http.StatusCreated)

		_, err := s.authenticator.Authenticate(context.Background(),
			&siop.QRCodeValues{RedirectURL: rp.redirectURL(), State: "other"}, credentials())
		require.ErrorIs(t, err, siop.ErrTransport)
	})
}

type countingMatcher struct {
	calls int
}

func (m *countingMatcher) Match(context.Context, *siop.VerifiedRequest,
	[]*verifiable.Credential) ([]*siop.Submission, error) {
	m.calls++

	return nil, nil
}

type countingSender struct {
	calls int
}

func (s *countingSender) BuildAndSend(context.Context, *siop.VerifiedRequest, []*siop.Submission) error {
	s.calls++

	return nil
}

func TestAuthenticator_UnresolvableIdentity(t *testing.T) {
	t.Parallel()

	holder, _ := testutil.HolderDID(t, testutil.Agent(t), holderDID)
	rp := newRelyingParty(t, holder, http.StatusCreated)

	registry := &vdrmock.MockVDRegistry{ResolveErr: errors.New("did not found")}
	config := siop.NewConfig(siop.SigningIdentity{DID: holderDID, KeyID: holderDID + "#key-1"})
	matcher := &countingMatcher{}
	sender := &countingSender{}

	a, err := New(&Config{
		Verifier: verifier.New(identity.New(registry), config, verifier.WithClock(time.Now)),
		Matcher:  matcher,
		Sender:   sender,
		Fetcher:  transport.New(),
	})
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(),
		&siop.QRCodeValues{RedirectURL: rp.redirectURL(), State: stateID}, credentials(),
		verifier.WithIdentityMethod("example"))
	require.ErrorIs(t, err, siop.ErrIdentityUnresolvable)
	require.Zero(t, matcher.calls)
	require.Zero(t, sender.calls)
	require.Empty(t, rp.received)
}

func TestAuthenticator_Steps(t *testing.T) {
	t.Parallel()

	var rp *relyingParty

	s := newStack(t, func() (*did.Doc, error) { return rp.rp.Doc, nil })
	rp = newRelyingParty(t, s.holder, http.StatusOK, "example", "web")

	ctx := context.Background()
	qr := &siop.QRCodeValues{RedirectURL: rp.redirectURL(), State: stateID}

	req, err := s.authenticator.GetAuthenticationRequestFromRP(ctx, qr)
	require.NoError(t, err)
	require.Equal(t, []string{"example", "web"}, req.RequestedIdentityMethods)

	_, err = s.authenticator.VerifyAuthenticationRequestURI(ctx, req, "ethr")
	require.ErrorIs(t, err, siop.ErrUnsupportedIdentityMethod)

	verified, err := s.authenticator.VerifyAuthenticationRequestURI(ctx, req, "example")
	require.NoError(t, err)
	require.Equal(t, rpDID, verified.Identity.ID)

	details, err := s.authenticator.GetAuthenticationRequestDetails(ctx, verified, credentials())
	require.NoError(t, err)
	require.Len(t, details.Submissions, 1)

	require.NoError(t, s.authenticator.SendAuthResponse(ctx, verified, details))

	claims := <-rp.received
	require.Equal(t, nonce, claims["nonce"])

	decoded, err := s.authenticator.DecodeRequest([]byte("openid://?nonce=x"))
	require.Nil(t, decoded)
	require.ErrorIs(t, err, siop.ErrMalformedRequest)
}
