/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"gopkg.in/square/go-jose.v2"
)

// JWS algorithms go-jose does not implement.
const (
	ES256K  = "ES256K"
	ES256KR = "ES256K-R"
)

const (
	compactParts      = 3
	secp256k1SigSize  = 64
	recoverableSigLen = 65
	ethereumV         = 27
)

var errSignatureMismatch = errors.New("signature does not match the verification method")

// VerifyJWS verifies the compact JWS token with the public key of the verification method.
// A recoverable ES256K-R signature is accepted when it recovers to the key of the method, or to the
// ethereum address ending didID when the method carries no key material.
func VerifyJWS(token string, vm *did.VerificationMethod, didID string) error {
	jws, err := jose.ParseSigned(token)
	if err != nil {
		return fmt.Errorf("parse jws: %w", err)
	}

	if len(jws.Signatures) != 1 {
		return fmt.Errorf("expected one signature, got %d", len(jws.Signatures))
	}

	alg := jws.Signatures[0].Protected.Algorithm

	switch alg {
	case string(jose.EdDSA):
		if len(vm.Value) != ed25519.PublicKeySize {
			return fmt.Errorf("verification method %s is not an ed25519 key", vm.ID)
		}

		_, err = jws.Verify(ed25519.PublicKey(vm.Value))
	case string(jose.ES256):
		var pub *ecdsa.PublicKey

		pub, err = p256PublicKey(vm.Value)
		if err == nil {
			_, err = jws.Verify(pub)
		}
	case ES256K:
		err = verifySecp256k1(token, vm.Value)
	case ES256KR:
		err = verifyRecoverable(token, vm.Value, didID)
	default:
		return fmt.Errorf("unsupported jws algorithm %q", alg)
	}

	if err != nil {
		return fmt.Errorf("verify %s signature: %w", alg, err)
	}

	return nil
}

func p256PublicKey(value []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), value)
	if x == nil {
		x, y = elliptic.UnmarshalCompressed(elliptic.P256(), value)
	}

	if x == nil {
		return nil, errors.New("invalid P-256 public key")
	}

	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// signingInput splits a compact JWS into its signing input digest and raw signature.
func signingInput(token string) ([]byte, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != compactParts {
		return nil, nil, errors.New("jws is not in compact form")
	}

	sig, err := decodeSegment(parts[2])
	if err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}

	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))

	return digest[:], sig, nil
}

func verifySecp256k1(token string, pub []byte) error {
	digest, sig, err := signingInput(token)
	if err != nil {
		return err
	}

	if len(sig) != secp256k1SigSize {
		return fmt.Errorf("invalid signature size %d", len(sig))
	}

	if len(pub) == 0 {
		return errors.New("verification method has no public key")
	}

	if !ethcrypto.VerifySignature(pub, digest, sig) {
		return errSignatureMismatch
	}

	return nil
}

func verifyRecoverable(token string, pub []byte, didID string) error {
	digest, sig, err := signingInput(token)
	if err != nil {
		return err
	}

	if len(sig) != recoverableSigLen {
		return fmt.Errorf("invalid recoverable signature size %d", len(sig))
	}

	rsv := append([]byte(nil), sig...)
	if rsv[secp256k1SigSize] >= ethereumV {
		rsv[secp256k1SigSize] -= ethereumV
	}

	recovered, err := ethcrypto.SigToPub(digest, rsv)
	if err != nil {
		return fmt.Errorf("recover public key: %w", err)
	}

	if len(pub) > 0 {
		if bytes.Equal(pub, ethcrypto.CompressPubkey(recovered)) ||
			bytes.Equal(pub, ethcrypto.FromECDSAPub(recovered)) {
			return nil
		}

		return errSignatureMismatch
	}

	address := didID[strings.LastIndex(didID, ":")+1:]
	if strings.EqualFold(address, ethcrypto.PubkeyToAddress(*recovered).Hex()) {
		return nil
	}

	return errSignatureMismatch
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}
