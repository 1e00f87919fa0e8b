/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/doc/presexch"
	"github.com/mitchellh/mapstructure"
	"github.com/trustbloc/edge-core/pkg/log"
	"gopkg.in/square/go-jose.v2/jwt"

	"github.com/trustbloc/siop-agent/pkg/internal/common/adapterutil"
	"github.com/trustbloc/siop-agent/pkg/siop"
)

var logger = log.New("siop-agent/request")

// request parameters.
const (
	paramRequest                = "request"
	paramNonce                  = "nonce"
	paramState                  = "state"
	paramClientID               = "client_id"
	paramRedirectURI            = "redirect_uri"
	paramResponseMode           = "response_mode"
	paramRegistration           = "registration"
	paramClaims                 = "claims"
	paramPresentationDefinition = "presentation_definition"

	didMethodsSupported = "did_methods_supported"
	didPrefix           = "did:"
)

// container is the set of scalar request parameters.
type container struct {
	Request      string `mapstructure:"request"`
	Nonce        string `mapstructure:"nonce"`
	State        string `mapstructure:"state"`
	ClientID     string `mapstructure:"client_id"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	ResponseMode string `mapstructure:"response_mode"`
}

type registrationMetadata struct {
	DIDMethodsSupported []string `mapstructure:"did_methods_supported"`
}

type claimsRequest struct {
	IDToken *struct {
		VerifiablePresentations []struct {
			PresentationDefinition json.RawMessage `json:"presentation_definition"`
		} `json:"verifiable_presentations"`
	} `json:"id_token"`
	VPToken *struct {
		PresentationDefinition json.RawMessage `json:"presentation_definition"`
	} `json:"vp_token"`
}

// Decode decodes an authentication request from a URI (openid://?...), a percent-encoded query string or a
// JSON object. Parameters signed in the request object take its values, and a container value that differs
// from the signed one is rejected. The request object is not verified here.
// It returns a fully populated request or an error wrapping siop.ErrMalformedRequest.
func Decode(raw []byte) (*siop.AuthenticationRequest, error) {
	params, err := readParams(raw)
	if err != nil {
		return nil, malformed(err)
	}

	req, err := decodeParams(params)
	if err != nil {
		return nil, malformed(err)
	}

	return req, nil
}

// DecodeString decodes an authentication request from a string payload.
func DecodeString(raw string) (*siop.AuthenticationRequest, error) {
	return Decode([]byte(raw))
}

func malformed(err error) error {
	return fmt.Errorf("%w: %s", siop.ErrMalformedRequest, err.Error())
}

func readParams(raw []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '{' {
		params := make(map[string]interface{})

		if err := json.Unmarshal(trimmed, &params); err != nil {
			return nil, fmt.Errorf("parse json payload: %w", err)
		}

		return params, nil
	}

	values, err := url.ParseQuery(queryOf(string(trimmed)))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	params := make(map[string]interface{}, len(values))

	for k := range values {
		params[k] = values.Get(k)
	}

	return params, nil
}

// queryOf returns the query component of a URI, or the input itself when it is already a query string.
func queryOf(raw string) string {
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[i+1:]
	}

	if i := strings.Index(raw, "#"); i >= 0 {
		raw = raw[:i]
	}

	return raw
}

// nolint:gocyclo
func decodeParams(params map[string]interface{}) (*siop.AuthenticationRequest, error) {
	token, ok := params[paramRequest].(string)
	if !ok || token == "" {
		return nil, fmt.Errorf("missing %s", paramRequest)
	}

	tokenClaims, err := unverifiedClaims(token)
	if err != nil {
		return nil, err
	}

	if err = bindSignedParams(params, tokenClaims); err != nil {
		return nil, err
	}

	c := &container{}

	if err = decodeStruct(params, c, false); err != nil {
		return nil, err
	}

	if c.Nonce == "" {
		return nil, fmt.Errorf("missing %s", paramNonce)
	}

	if c.RedirectURI == "" {
		return nil, fmt.Errorf("missing %s", paramRedirectURI)
	}

	if !adapterutil.ValidHTTPURL(c.RedirectURI) {
		return nil, fmt.Errorf("invalid %s %q", paramRedirectURI, c.RedirectURI)
	}

	registration, err := jsonObject(params[paramRegistration])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paramRegistration, err)
	}

	methods, err := identityMethods(registration)
	if err != nil {
		return nil, err
	}

	definitions, err := presentationDefinitions(params)
	if err != nil {
		return nil, err
	}

	return &siop.AuthenticationRequest{
		Token:                    token,
		Nonce:                    c.Nonce,
		State:                    c.State,
		ClientID:                 c.ClientID,
		ResponseMode:             c.ResponseMode,
		ResponseDestination:      c.RedirectURI,
		RequestedIdentityMethods: methods,
		PresentationDefinitions:  definitions,
		Registration:             registration,
	}, nil
}

func unverifiedClaims(token string) (map[string]interface{}, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("parse request object: %w", err)
	}

	claims := make(map[string]interface{})

	if err = parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("read request object claims: %w", err)
	}

	return claims, nil
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && s == ""
}

func decodeStruct(input, output interface{}, weak bool) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: weak,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	if err = decoder.Decode(input); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}

	return nil
}

// jsonObject accepts an object or its JSON string encoding.
func jsonObject(v interface{}) (map[string]interface{}, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return value, nil
	case string:
		if value == "" {
			return nil, nil
		}

		obj := make(map[string]interface{})

		if err := json.Unmarshal([]byte(value), &obj); err != nil {
			return nil, fmt.Errorf("parse json object: %w", err)
		}

		return obj, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

func identityMethods(registration map[string]interface{}) ([]string, error) {
	if registration == nil {
		return nil, nil
	}

	metadata := &registrationMetadata{}

	if err := decodeStruct(registration, metadata, true); err != nil {
		return nil, fmt.Errorf("%s: %w", paramRegistration, err)
	}

	var methods []string

	for _, entry := range metadata.DIDMethodsSupported {
		method := strings.SplitN(strings.TrimPrefix(entry, didPrefix), ":", 2)[0]
		if method == "" || adapterutil.StringsContains(method, methods) {
			continue
		}

		methods = append(methods, method)
	}

	return methods, nil
}

func presentationDefinitions(params map[string]interface{}) ([]*siop.PresentationDefinitionRef, error) {
	var refs []*siop.PresentationDefinitionRef

	claims, err := jsonObject(params[paramClaims])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", paramClaims, err)
	}

	if claims != nil {
		cr := &claimsRequest{}

		if err = remarshal(claims, cr); err != nil {
			return nil, fmt.Errorf("%s: %w", paramClaims, err)
		}

		if cr.IDToken != nil {
			for _, vp := range cr.IDToken.VerifiablePresentations {
				refs, err = appendDefinition(refs, siop.LocationIDToken, vp.PresentationDefinition)
				if err != nil {
					return nil, err
				}
			}
		}

		if cr.VPToken != nil {
			refs, err = appendDefinition(refs, siop.LocationVPToken, cr.VPToken.PresentationDefinition)
			if err != nil {
				return nil, err
			}
		}
	}

	if pd := params[paramPresentationDefinition]; !isEmpty(pd) {
		var raw json.RawMessage

		if s, ok := pd.(string); ok {
			raw = json.RawMessage(s)
		} else if raw, err = json.Marshal(pd); err != nil {
			return nil, fmt.Errorf("%s: %w", paramPresentationDefinition, err)
		}

		refs, err = appendDefinition(refs, siop.LocationVPToken, raw)
		if err != nil {
			return nil, err
		}
	}

	return refs, nil
}

func appendDefinition(refs []*siop.PresentationDefinitionRef, location siop.Location,
	raw json.RawMessage) ([]*siop.PresentationDefinitionRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%s presentation definition %d is empty", location, len(refs))
	}

	def := &presexch.PresentationDefinition{}

	if err := json.Unmarshal(raw, def); err != nil {
		return nil, fmt.Errorf("parse %s presentation definition: %w", location, err)
	}

	return append(refs, &siop.PresentationDefinitionRef{Location: location, Definition: def}), nil
}

func remarshal(in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, out)
}
