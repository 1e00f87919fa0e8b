/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package diddoc

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
)

// KeyID is the fragment of the verification method of the mock documents.
const KeyID = "key-1"

// GetMockDIDDoc returns a did document with a random ed25519 authentication key.
func GetMockDIDDoc(didID string) *did.Doc {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	return NewDoc(didID, "Ed25519VerificationKey2018", pub)
}

// NewDoc returns a did document with one authentication verification method of the given type and key.
func NewDoc(didID, keyType string, value []byte) *did.Doc {
	vm := did.NewVerificationMethodFromBytes(didID+"#"+KeyID, keyType, didID, value)

	return &did.Doc{
		ID:                 didID,
		VerificationMethod: []did.VerificationMethod{*vm},
		Authentication:     []did.Verification{*did.NewReferencedVerification(vm, did.Authentication)},
	}
}
