/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package request

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

// signedParams groups the parameters the signed request object is authoritative for. When the request object
// carries any parameter of a group, the container may only repeat the signed values of that group.
var signedParams = [][]string{ // nolint:gochecknoglobals
	{paramNonce},
	{paramState},
	{paramClientID},
	{paramRedirectURI},
	{paramResponseMode},
	{paramRegistration},
	{paramClaims, paramPresentationDefinition},
}

// bindSignedParams replaces the container parameters with the values of the request object.
func bindSignedParams(params, tokenClaims map[string]interface{}) error {
	for _, group := range signedParams {
		if !signsAny(tokenClaims, group) {
			continue
		}

		for _, key := range group {
			signed := tokenClaims[key]

			if !isEmpty(params[key]) {
				same, err := sameValue(params[key], signed)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}

				if !same {
					return fmt.Errorf("%s does not match the signed request object", key)
				}
			}

			if isEmpty(signed) {
				delete(params, key)

				continue
			}

			logger.Debugf("reading %s from request object", key)

			params[key] = signed
		}
	}

	return nil
}

// CheckSignedParameters checks that the request carries the values of its signed request object for every
// parameter the request object signs. It applies to requests built without Decode too.
func CheckSignedParameters(req *siop.AuthenticationRequest) error {
	tokenClaims, err := unverifiedClaims(req.Token)
	if err != nil {
		return err
	}

	scalars := []struct {
		key   string
		value string
	}{
		{paramNonce, req.Nonce},
		{paramState, req.State},
		{paramClientID, req.ClientID},
		{paramRedirectURI, req.ResponseDestination},
		{paramResponseMode, req.ResponseMode},
	}

	for _, p := range scalars {
		signed := tokenClaims[p.key]
		if isEmpty(signed) {
			continue
		}

		if s, isString := signed.(string); !isString || s != p.value {
			return fmt.Errorf("%s does not match the signed request object", p.key)
		}
	}

	if signsAny(tokenClaims, []string{paramRegistration}) {
		registration, err := jsonObject(tokenClaims[paramRegistration])
		if err != nil {
			return fmt.Errorf("%s: %w", paramRegistration, err)
		}

		methods, err := identityMethods(registration)
		if err != nil {
			return err
		}

		if !sameStrings(methods, req.RequestedIdentityMethods) {
			return fmt.Errorf("%s does not match the signed request object", didMethodsSupported)
		}
	}

	if signsAny(tokenClaims, []string{paramClaims, paramPresentationDefinition}) {
		definitions, err := presentationDefinitions(tokenClaims)
		if err != nil {
			return err
		}

		same, err := sameValue(definitions, req.PresentationDefinitions)
		if err != nil {
			return err
		}

		if !same {
			return fmt.Errorf("presentation definitions do not match the signed request object")
		}
	}

	return nil
}

func signsAny(tokenClaims map[string]interface{}, keys []string) bool {
	for _, key := range keys {
		if !isEmpty(tokenClaims[key]) {
			return true
		}
	}

	return false
}

// sameValue compares two parameter values by their JSON form. Strings holding a JSON object or array are
// compared as the value they encode.
func sameValue(a, b interface{}) (bool, error) {
	na, err := normalize(a)
	if err != nil {
		return false, err
	}

	nb, err := normalize(b)
	if err != nil {
		return false, err
	}

	return reflect.DeepEqual(na, nb), nil
}

func normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			return s, nil
		}

		v = json.RawMessage(trimmed)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	var out interface{}

	if err = json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}

	return out, nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
