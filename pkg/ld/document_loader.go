/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ld

import (
	"fmt"
	"net/http"

	"github.com/hyperledger/aries-framework-go/pkg/doc/ld"
	"github.com/hyperledger/aries-framework-go/pkg/doc/ldcontext/remote"
	ldstore "github.com/hyperledger/aries-framework-go/pkg/store/ld"
	jsonld "github.com/piprate/json-gold/ld"
)

// provider contains dependencies for the JSON-LD document loader.
type provider interface {
	JSONLDContextStore() ldstore.ContextStore
	JSONLDRemoteProviderStore() ldstore.RemoteProviderStore
}

// Opt configures the document loader.
type Opt func(o *options)

type options struct {
	httpClient       *http.Client
	contextProviders []string
	allowRemote      bool
}

// WithHTTPClient sets the client remote contexts are fetched with.
func WithHTTPClient(client *http.Client) Opt {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithContextProviders preloads the contexts served by the given JSON-LD context provider endpoints.
func WithContextProviders(urls ...string) Opt {
	return func(o *options) {
		o.contextProviders = append(o.contextProviders, urls...)
	}
}

// WithRemoteContexts lets the loader fetch contexts it does not hold from their URL.
func WithRemoteContexts() Opt {
	return func(o *options) {
		o.allowRemote = true
	}
}

// NewDocumentLoader returns a JSON-LD document loader backed by the agent's context store.
func NewDocumentLoader(p provider, opts ...Opt) (jsonld.DocumentLoader, error) {
	o := &options{httpClient: http.DefaultClient}

	for _, opt := range opts {
		opt(o)
	}

	var loaderOpts []ld.DocumentLoaderOpts

	for _, url := range o.contextProviders {
		loaderOpts = append(loaderOpts,
			ld.WithRemoteProvider(remote.NewProvider(url, remote.WithHTTPClient(o.httpClient))))
	}

	if o.allowRemote {
		loaderOpts = append(loaderOpts, ld.WithRemoteDocumentLoader(jsonld.NewDefaultDocumentLoader(o.httpClient)))
	}

	loader, err := ld.NewDocumentLoader(p, loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("new document loader: %w", err)
	}

	return loader, nil
}
