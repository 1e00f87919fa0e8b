/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package siop

import "strings"

// AcceptableMethods is the set of DID methods a request token may be signed with.
// The zero value accepts nothing; use AnyIdentityMethod to accept every method.
type AcceptableMethods struct {
	methods []string
	any     bool
}

// AnyIdentityMethod accepts any resolvable identity method.
func AnyIdentityMethod() AcceptableMethods {
	return AcceptableMethods{any: true}
}

// OnlyIdentityMethods accepts the given methods.
func OnlyIdentityMethods(methods ...string) AcceptableMethods {
	return AcceptableMethods{methods: append([]string(nil), methods...)}
}

// Unconstrained reports whether every method is accepted.
func (a AcceptableMethods) Unconstrained() bool {
	return a.any
}

// Methods returns the accepted methods. It is empty when unconstrained.
func (a AcceptableMethods) Methods() []string {
	return append([]string(nil), a.methods...)
}

// Accepts reports whether method is acceptable.
func (a AcceptableMethods) Accepts(method string) bool {
	if a.any {
		return true
	}

	for _, m := range a.methods {
		if m == method {
			return true
		}
	}

	return false
}

func (a AcceptableMethods) String() string {
	if a.any {
		return "*"
	}

	return strings.Join(a.methods, ",")
}
