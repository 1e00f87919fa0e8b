/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
)

const (
	methodParts = 2

	invalidFormatErrMsgFmt = "verification method %s should be in did#keyID format"
)

// SplitVerificationMethod splits a did#keyID verification method URL.
func SplitVerificationMethod(method string) (didID, keyID string, err error) {
	parts := strings.Split(method, "#")
	if len(parts) != methodParts || parts[1] == "" {
		return "", "", fmt.Errorf(invalidFormatErrMsgFmt, method)
	}

	id, err := did.Parse(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to parse DID URI [%s]: %w", parts[0], err)
	}

	return id.String(), parts[1], nil
}

// AbsoluteMethodID returns the verification method id qualified by the DID it belongs to.
func AbsoluteMethodID(didID, methodID string) string {
	if strings.HasPrefix(methodID, "#") {
		return didID + methodID
	}

	return methodID
}

// FindVerificationMethod looks up a verification method of the document by its absolute or relative id.
// Methods embedded in the authentication relationship are searched too.
func FindVerificationMethod(doc *did.Doc, methodID string) (*did.VerificationMethod, bool) {
	for i := range doc.VerificationMethod {
		if AbsoluteMethodID(doc.ID, doc.VerificationMethod[i].ID) == methodID {
			return &doc.VerificationMethod[i], true
		}
	}

	for i := range doc.Authentication {
		vm := doc.Authentication[i].VerificationMethod
		if AbsoluteMethodID(doc.ID, vm.ID) == methodID {
			return &vm, true
		}
	}

	return nil, false
}
