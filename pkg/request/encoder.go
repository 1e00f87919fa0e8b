/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

const openIDScheme = "openid://?"

// EncodeURI encodes a request as an openid:// URI. Decode(EncodeURI(r)) yields a request equal to r.
func EncodeURI(req *siop.AuthenticationRequest) (string, error) {
	if req == nil || req.Token == "" || req.Nonce == "" || req.ResponseDestination == "" {
		return "", errors.New("request, nonce and redirect_uri are required")
	}

	values := url.Values{}
	values.Set(paramRequest, req.Token)
	values.Set(paramNonce, req.Nonce)
	values.Set(paramRedirectURI, req.ResponseDestination)

	setIfPresent(values, paramState, req.State)
	setIfPresent(values, paramClientID, req.ClientID)
	setIfPresent(values, paramResponseMode, req.ResponseMode)

	registration := registrationWithMethods(req.Registration, req.RequestedIdentityMethods)
	if registration != nil {
		b, err := json.Marshal(registration)
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", paramRegistration, err)
		}

		values.Set(paramRegistration, string(b))
	}

	claims, err := claimsOf(req.PresentationDefinitions)
	if err != nil {
		return "", err
	}

	if claims != nil {
		b, err := json.Marshal(claims)
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", paramClaims, err)
		}

		values.Set(paramClaims, string(b))
	}

	return openIDScheme + values.Encode(), nil
}

func setIfPresent(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func registrationWithMethods(registration map[string]interface{}, methods []string) map[string]interface{} {
	if registration == nil && len(methods) == 0 {
		return nil
	}

	out := make(map[string]interface{}, len(registration)+1)

	for k, v := range registration {
		out[k] = v
	}

	if len(methods) > 0 {
		supported := make([]interface{}, len(methods))

		for i, m := range methods {
			supported[i] = didPrefix + m + ":"
		}

		out[didMethodsSupported] = supported
	}

	return out
}

func claimsOf(refs []*siop.PresentationDefinitionRef) (map[string]interface{}, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	var (
		idTokenVPs []interface{}
		vpToken    map[string]interface{}
	)

	for _, ref := range refs {
		switch ref.Location {
		case siop.LocationIDToken:
			idTokenVPs = append(idTokenVPs, map[string]interface{}{
				paramPresentationDefinition: ref.Definition,
			})
		case siop.LocationVPToken:
			if vpToken != nil {
				return nil, errors.New("only one vp_token presentation definition can be encoded")
			}

			vpToken = map[string]interface{}{paramPresentationDefinition: ref.Definition}
		default:
			return nil, fmt.Errorf("unknown presentation location %q", ref.Location)
		}
	}

	claims := make(map[string]interface{})

	if idTokenVPs != nil {
		claims[string(siop.LocationIDToken)] = map[string]interface{}{"verifiable_presentations": idTokenVPs}
	}

	if vpToken != nil {
		claims[string(siop.LocationVPToken)] = vpToken
	}

	return claims, nil
}
