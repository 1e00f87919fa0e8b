/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"fmt"

	ariescrypto "github.com/hyperledger/aries-framework-go/pkg/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/hyperledger/aries-framework-go/pkg/doc/signature/jsonld"
	"github.com/hyperledger/aries-framework-go/pkg/doc/signature/suite"
	"github.com/hyperledger/aries-framework-go/pkg/doc/signature/suite/ed25519signature2018"
	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/piprate/json-gold/ld"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

const (
	// Ed25519Signature2018 ed25519 signature suite
	Ed25519Signature2018 = "Ed25519Signature2018"

	// Ed25519VerificationKey2018 ed25119 verification key
	Ed25519VerificationKey2018 = "Ed25519VerificationKey2018"
	// Ed25519VerificationKey2020 ed25119 verification key
	Ed25519VerificationKey2020 = "Ed25519VerificationKey2020"
	// EcdsaSecp256r1VerificationKey2019 P-256 verification key
	EcdsaSecp256r1VerificationKey2019 = "EcdsaSecp256r1VerificationKey2019"
	// JSONWebKey2020 verification key in JWK form
	JSONWebKey2020 = "JsonWebKey2020"

	// Authentication authentication
	Authentication = "authentication"
)

// New returns the holder's signing capability over the agent's KMS.
func New(keyManager kms.KeyManager, c ariescrypto.Crypto, vdr vdrapi.Registry, dl ld.DocumentLoader) *Crypto {
	return &Crypto{
		keyManager: keyManager,
		crypto:     c,
		vdr:        vdr,
		docLoader:  dl,
	}
}

// Crypto signs responses and presentations with keys of the holder's DID.
type Crypto struct {
	keyManager kms.KeyManager
	crypto     ariescrypto.Crypto
	vdr        vdrapi.Registry
	docLoader  ld.DocumentLoader
}

// SignPresentation adds an authentication proof bound to challenge and domain to the presentation.
func (c *Crypto) SignPresentation(vp *verifiable.Presentation, signingKeyID, challenge,
	domain string) (*verifiable.Presentation, error) {
	s, _, err := c.signer(signingKeyID, Authentication)
	if err != nil {
		return nil, fmt.Errorf("sign presentation : %w", err)
	}

	if s.alg != jose.EdDSA {
		return nil, fmt.Errorf("sign presentation : %s keys cannot sign %s proofs", s.alg, Ed25519Signature2018)
	}

	err = vp.AddLinkedDataProof(&verifiable.LinkedDataProofContext{
		VerificationMethod:      signingKeyID,
		SignatureRepresentation: verifiable.SignatureJWS,
		SignatureType:           Ed25519Signature2018,
		Suite:                   ed25519signature2018.New(suite.WithSigner(s)),
		Purpose:                 Authentication,
		Challenge:               challenge,
		Domain:                  domain,
	}, jsonld.WithDocumentLoader(c.docLoader))
	if err != nil {
		return nil, fmt.Errorf("failed to sign presentation: %w", err)
	}

	return vp, nil
}

// SignJWT signs the claims as a compact JWS with the key of signingKeyID.
func (c *Crypto) SignJWT(claims interface{}, signingKeyID string) (string, error) {
	s, _, err := c.signer(signingKeyID, Authentication)
	if err != nil {
		return "", fmt.Errorf("sign jwt : %w", err)
	}

	alg := s.alg

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: &opaqueSigner{signer: s, keyID: signingKeyID, alg: alg}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create jose signer: %w", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}

	return token, nil
}

func (c *Crypto) signer(signingKeyID, proofPurpose string) (*kmsSigner, *did.VerificationMethod, error) {
	s, err := newKMSSigner(c.keyManager, c.crypto, signingKeyID)
	if err != nil {
		return nil, nil, err
	}

	vm, err := c.validateDIDDoc(signingKeyID, proofPurpose)
	if err != nil {
		return nil, nil, fmt.Errorf("validate did doc : %w", err)
	}

	s.alg, err = signatureAlgorithm(vm)
	if err != nil {
		return nil, nil, err
	}

	return s, vm, nil
}

func (c *Crypto) validateDIDDoc(signingKeyID, proofPurpose string) (*did.VerificationMethod, error) {
	didID, _, err := SplitVerificationMethod(signingKeyID)
	if err != nil {
		return nil, err
	}

	docResolution, err := c.vdr.Resolve(didID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve did %s: %w", didID, err)
	}

	return validateProofPurpose(proofPurpose, signingKeyID, docResolution.DIDDocument)
}

func validateProofPurpose(proofPurpose, method string, didDoc *did.Doc) (*did.VerificationMethod, error) {
	if proofPurpose != Authentication {
		return nil, fmt.Errorf("proof purpose %s not supported", proofPurpose)
	}

	for _, vm := range didDoc.VerificationMethods(did.Authentication)[did.Authentication] {
		if AbsoluteMethodID(didDoc.ID, vm.VerificationMethod.ID) == method {
			matched := vm.VerificationMethod

			return &matched, nil
		}
	}

	return nil, fmt.Errorf("unable to find matching %s key IDs for given verification method %s",
		proofPurpose, method)
}

func signatureAlgorithm(vm *did.VerificationMethod) (jose.SignatureAlgorithm, error) {
	switch vm.Type {
	case Ed25519VerificationKey2018, Ed25519VerificationKey2020:
		return jose.EdDSA, nil
	case EcdsaSecp256r1VerificationKey2019:
		return jose.ES256, nil
	case JSONWebKey2020:
		if jwk := vm.JSONWebKey(); jwk != nil {
			switch jwk.Crv {
			case "Ed25519":
				return jose.EdDSA, nil
			case "P-256":
				return jose.ES256, nil
			}
		}
	}

	return "", fmt.Errorf("verification method type %s is not supported for signing", vm.Type)
}

type kmsSigner struct {
	keyHandle interface{}
	crypto    ariescrypto.Crypto
	alg       jose.SignatureAlgorithm
}

func newKMSSigner(keyManager kms.KeyManager, c ariescrypto.Crypto, signingKeyID string) (*kmsSigner, error) {
	// signingKeyID will contain didID#keyID
	_, keyID, err := SplitVerificationMethod(signingKeyID)
	if err != nil {
		return nil, err
	}

	keyHandler, err := keyManager.Get(keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keyID %s: %w", keyID, err)
	}

	return &kmsSigner{keyHandle: keyHandler, crypto: c}, nil
}

// Alg returns the JWS algorithm of the signing key.
func (s *kmsSigner) Alg() string {
	return string(s.alg)
}

func (s *kmsSigner) Sign(data []byte) ([]byte, error) {
	v, err := s.crypto.Sign(data, s.keyHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to sign data: %w", err)
	}

	return v, nil
}

// opaqueSigner lets go-jose sign with a KMS held key.
type opaqueSigner struct {
	signer *kmsSigner
	keyID  string
	alg    jose.SignatureAlgorithm
}

func (o *opaqueSigner) Public() *jose.JSONWebKey {
	return &jose.JSONWebKey{KeyID: o.keyID, Algorithm: string(o.alg), Use: "sig"}
}

func (o *opaqueSigner) Algs() []jose.SignatureAlgorithm {
	return []jose.SignatureAlgorithm{o.alg}
}

func (o *opaqueSigner) SignPayload(payload []byte, alg jose.SignatureAlgorithm) ([]byte, error) {
	if alg != o.alg {
		return nil, fmt.Errorf("unexpected signature algorithm %s", alg)
	}

	return o.signer.Sign(payload)
}
