/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto_test

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/crypto"
	"github.com/trustbloc/siop-agent/pkg/internal/mock/diddoc"
	"github.com/trustbloc/siop-agent/pkg/internal/testutil"
)

func TestVerifyJWS(t *testing.T) {
	t.Parallel()

	claims := map[string]interface{}{"nonce": "abc", "iss": "did:example:rp"}

	t.Run("EdDSA", func(t *testing.T) {
		t.Parallel()

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		doc := diddoc.NewDoc("did:example:rp", "Ed25519VerificationKey2018", pub)
		token := testutil.SignEdDSA(t, priv, doc.VerificationMethod[0].ID, claims)

		require.NoError(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))

		other := diddoc.GetMockDIDDoc("did:example:rp")
		err = crypto.VerifyJWS(token, &other.VerificationMethod[0], doc.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "verify EdDSA signature")
	})

	t.Run("EdDSA with a non ed25519 key", func(t *testing.T) {
		t.Parallel()

		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		doc := diddoc.NewDoc("did:example:rp", "Ed25519VerificationKey2018", []byte("short"))
		token := testutil.SignEdDSA(t, priv, doc.VerificationMethod[0].ID, claims)

		err = crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "is not an ed25519 key")
	})

	t.Run("ES256", func(t *testing.T) {
		t.Parallel()

		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		doc := diddoc.NewDoc("did:example:rp", crypto.EcdsaSecp256r1VerificationKey2019,
			elliptic.Marshal(elliptic.P256(), key.X, key.Y))

		signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: key}, nil)
		require.NoError(t, err)

		token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
		require.NoError(t, err)

		require.NoError(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))
	})

	t.Run("ES256K", func(t *testing.T) {
		t.Parallel()

		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		doc := diddoc.NewDoc("did:ethr:0x1234", "EcdsaSecp256k1VerificationKey2019",
			ethcrypto.CompressPubkey(&key.PublicKey))

		token := signSecp256k1(t, key, crypto.ES256K, claims)
		require.NoError(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))

		other, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		token = signSecp256k1(t, other, crypto.ES256K, claims)
		err = crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "signature does not match")
	})

	t.Run("ES256K-R against an ethereum address", func(t *testing.T) {
		t.Parallel()

		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		didID := "did:ethr:" + ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
		doc := diddoc.NewDoc(didID, "EcdsaSecp256k1RecoveryMethod2020", nil)

		token := signSecp256k1(t, key, crypto.ES256KR, claims)
		require.NoError(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))

		other, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		token = signSecp256k1(t, other, crypto.ES256KR, claims)
		require.Error(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))
	})

	t.Run("ES256K-R against a public key", func(t *testing.T) {
		t.Parallel()

		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		doc := diddoc.NewDoc("did:ethr:0x1234", "EcdsaSecp256k1VerificationKey2019",
			ethcrypto.FromECDSAPub(&key.PublicKey))

		token := signSecp256k1(t, key, crypto.ES256KR, claims)
		require.NoError(t, crypto.VerifyJWS(token, &doc.VerificationMethod[0], doc.ID))
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		t.Parallel()

		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		doc := diddoc.GetMockDIDDoc("did:example:rp")

		err = crypto.VerifyJWS(signSecp256k1(t, key, "PS512", claims), &doc.VerificationMethod[0], doc.ID)
		require.EqualError(t, err, `unsupported jws algorithm "PS512"`)
	})

	t.Run("not a jws", func(t *testing.T) {
		t.Parallel()

		doc := diddoc.GetMockDIDDoc("did:example:rp")

		err := crypto.VerifyJWS("not-a-jws", &doc.VerificationMethod[0], doc.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "parse jws")
	})
}

func signSecp256k1(t *testing.T, key *ecdsa.PrivateKey, alg string, claims interface{}) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": alg, "typ": "JWT", "kid": "did:example:rp#key-1"})
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	digest := sha256.Sum256([]byte(input))

	sig, err := ethcrypto.Sign(digest[:], key)
	require.NoError(t, err)

	if alg != crypto.ES256KR {
		sig = sig[:64]
	}

	return input + "." + base64.RawURLEncoding.EncodeToString(sig)
}
