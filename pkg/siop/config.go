/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package siop

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResponseMode is how the authentication response is returned to the relying party.
type ResponseMode string

// RegistrationBy is how the holder's registration metadata is passed in the response.
type RegistrationBy string

const (
	// ResponseModePost posts the response as a form to the request's redirect_uri.
	ResponseModePost ResponseMode = "post"

	// RegistrationByValue embeds the registration metadata in the id_token.
	RegistrationByValue RegistrationBy = "value"
	// RegistrationByReference passes a registration_uri in the id_token.
	RegistrationByReference RegistrationBy = "reference"
)

// Defaults applied by NewConfig.
const (
	DefaultExpiresIn      = 6000 * time.Second
	DefaultIdentityMethod = "ethr"
	DefaultResponseMode   = ResponseModePost
	DefaultRegistrationBy = RegistrationByValue
)

// SigningIdentity is the holder's DID and the verification method it signs responses with.
type SigningIdentity struct {
	DID string
	// KeyID is the verification method in did#kid form. The fragment is the KMS key id.
	KeyID string
}

// Config is the holder configuration. It is a value: the With* helpers return modified copies.
//
// A Config with no IdentityMethods has no caller default and verification of requests that declare no
// methods of their own accepts any resolvable identity method.
type Config struct {
	SigningIdentity SigningIdentity
	ExpiresIn       time.Duration
	IdentityMethods []string
	ResponseMode    ResponseMode
	RegistrationBy  RegistrationBy
	RegistrationURI string
}

// ConfigOpt overrides one default of NewConfig.
type ConfigOpt func(c *Config)

// WithExpiresIn sets the lifetime of the responses.
func WithExpiresIn(d time.Duration) ConfigOpt {
	return func(c *Config) {
		c.ExpiresIn = d
	}
}

// WithIdentityMethods sets the identity methods accepted when a request declares none.
// Passing no methods removes the default and makes verification unconstrained.
func WithIdentityMethods(methods ...string) ConfigOpt {
	return func(c *Config) {
		c.IdentityMethods = append([]string(nil), methods...)
	}
}

// WithRegistrationReference passes the registration metadata by reference.
func WithRegistrationReference(uri string) ConfigOpt {
	return func(c *Config) {
		c.RegistrationBy = RegistrationByReference
		c.RegistrationURI = uri
	}
}

// NewConfig returns a Config with the defaults applied, then opts.
func NewConfig(identity SigningIdentity, opts ...ConfigOpt) Config {
	c := Config{
		SigningIdentity: identity,
		ExpiresIn:       DefaultExpiresIn,
		IdentityMethods: []string{DefaultIdentityMethod},
		ResponseMode:    DefaultResponseMode,
		RegistrationBy:  DefaultRegistrationBy,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// Methods returns a copy of the configured identity methods.
func (c Config) Methods() []string {
	return append([]string(nil), c.IdentityMethods...)
}

// Validate checks the enumerated options and the signing identity.
func (c Config) Validate() error {
	if c.SigningIdentity.DID == "" {
		return errors.New("signing identity DID is required")
	}

	if !strings.HasPrefix(c.SigningIdentity.KeyID, c.SigningIdentity.DID+"#") {
		return fmt.Errorf("signing key id %q must be a verification method of %s",
			c.SigningIdentity.KeyID, c.SigningIdentity.DID)
	}

	if c.ExpiresIn <= 0 {
		return fmt.Errorf("invalid expiry %s", c.ExpiresIn)
	}

	switch c.ResponseMode {
	case ResponseModePost:
	default:
		return fmt.Errorf("unsupported response mode %q", c.ResponseMode)
	}

	switch c.RegistrationBy {
	case RegistrationByValue:
	case RegistrationByReference:
		if c.RegistrationURI == "" {
			return errors.New("registration by reference requires a registration uri")
		}
	default:
		return fmt.Errorf("unsupported registration type %q", c.RegistrationBy)
	}

	return nil
}
