/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	_ "embed" // embeds the example credential contexts
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	ldloader "github.com/hyperledger/aries-framework-go/pkg/doc/ld"
	"github.com/hyperledger/aries-framework-go/pkg/doc/ldcontext"
	"github.com/hyperledger/aries-framework-go/pkg/framework/aries"
	"github.com/hyperledger/aries-framework-go/pkg/framework/context"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/piprate/json-gold/ld"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/internal/mock/diddoc"
)

// Agent returns the context of an in-memory aries agent.
func Agent(t *testing.T) *context.Provider {
	t.Helper()

	a, err := aries.New(
		aries.WithStoreProvider(mem.NewProvider()),
		aries.WithProtocolStateStoreProvider(mem.NewProvider()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	ctx, err := a.Context()
	require.NoError(t, err)

	return ctx
}

// ExamplesContextURL is the context of the W3C example credentials.
const ExamplesContextURL = "https://www.w3.org/2018/credentials/examples/v1"

//go:embed contexts/credentials-examples_v1.jsonld
var examplesContext []byte

// DocumentLoader returns a document loader with the contexts an aries agent preloads
// and the W3C example credentials context, so no context is fetched over the network.
func DocumentLoader(t *testing.T) ld.DocumentLoader {
	t.Helper()

	loader, err := ldloader.NewDocumentLoader(Agent(t), ldloader.WithExtraContexts(ldcontext.Document{
		URL:     ExamplesContextURL,
		Content: examplesContext,
	}))
	require.NoError(t, err)

	return loader
}

// HolderDID creates an ed25519 key in the agent's KMS and returns a document of didID authenticating with it,
// together with the verification method id.
func HolderDID(t *testing.T, ctx *context.Provider, didID string) (*did.Doc, string) {
	t.Helper()

	keyID, pub, err := ctx.KMS().CreateAndExportPubKeyBytes(kms.ED25519Type)
	require.NoError(t, err)

	vm := did.NewVerificationMethodFromBytes(didID+"#"+keyID, "Ed25519VerificationKey2018", didID, pub)

	return &did.Doc{
		ID:                 didID,
		VerificationMethod: []did.VerificationMethod{*vm},
		Authentication:     []did.Verification{*did.NewReferencedVerification(vm, did.Authentication)},
	}, vm.ID
}

// RelyingParty is a relying party identity signing request objects with an ed25519 key.
type RelyingParty struct {
	DID   string
	KeyID string
	Doc   *did.Doc
	key   ed25519.PrivateKey
}

// NewRelyingParty returns a relying party with a fresh key.
func NewRelyingParty(t *testing.T, didID string) *RelyingParty {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	doc := diddoc.NewDoc(didID, "Ed25519VerificationKey2018", pub)

	return &RelyingParty{DID: didID, KeyID: doc.VerificationMethod[0].ID, Doc: doc, key: priv}
}

// Sign signs claims as a request object with kid set to the relying party's verification method.
func (rp *RelyingParty) Sign(t *testing.T, claims interface{}) string {
	t.Helper()

	return SignEdDSA(t, rp.key, rp.KeyID, claims)
}

// SignEdDSA signs claims as a compact JWS.
func SignEdDSA(t *testing.T, key ed25519.PrivateKey, kid string, claims interface{}) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", kid))
	require.NoError(t, err)

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)

	return token
}
