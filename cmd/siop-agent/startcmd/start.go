/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	arieslog "github.com/hyperledger/aries-framework-go/pkg/common/log"
	"github.com/hyperledger/aries-framework-go/pkg/framework/aries"
	ariesctx "github.com/hyperledger/aries-framework-go/pkg/framework/context"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/httpbinding"
	vdrkey "github.com/hyperledger/aries-framework-go/pkg/vdr/key"
	jsonld "github.com/piprate/json-gold/ld"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/trustbloc/edge-core/pkg/log"
	cmdutils "github.com/trustbloc/edge-core/pkg/utils/cmd"
	tlsutils "github.com/trustbloc/edge-core/pkg/utils/tls"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trustbloc/siop-agent/pkg/authenticator"
	"github.com/trustbloc/siop-agent/pkg/crypto"
	"github.com/trustbloc/siop-agent/pkg/identity"
	"github.com/trustbloc/siop-agent/pkg/ld"
	"github.com/trustbloc/siop-agent/pkg/presentationex"
	"github.com/trustbloc/siop-agent/pkg/response"
	"github.com/trustbloc/siop-agent/pkg/restapi"
	"github.com/trustbloc/siop-agent/pkg/restapi/healthcheck"
	"github.com/trustbloc/siop-agent/pkg/restapi/holder"
	holderops "github.com/trustbloc/siop-agent/pkg/restapi/holder/operation"
	"github.com/trustbloc/siop-agent/pkg/siop"
	"github.com/trustbloc/siop-agent/pkg/transport"
	"github.com/trustbloc/siop-agent/pkg/verifier"
)

var logger = log.New("siop-agent")

const (
	hostURLFlagName      = "host-url"
	hostURLFlagShorthand = "u"
	hostURLFlagUsage     = "URL to run the siop-agent instance on. Format: HostName:Port."
	hostURLEnvKey        = "SIOP_AGENT_HOST_URL"

	tlsSystemCertPoolFlagName  = "tls-systemcertpool"
	tlsSystemCertPoolFlagUsage = "Use system certificate pool." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + tlsSystemCertPoolEnvKey
	tlsSystemCertPoolEnvKey = "SIOP_AGENT_TLS_SYSTEMCERTPOOL"

	tlsCACertsFlagName  = "tls-cacerts"
	tlsCACertsFlagUsage = "Comma-Separated list of ca certs path." +
		" Alternatively, this can be set with the following environment variable: " + tlsCACertsEnvKey
	tlsCACertsEnvKey = "SIOP_AGENT_TLS_CACERTS"

	tlsServeCertPathFlagName  = "tls-serve-cert"
	tlsServeCertPathFlagUsage = "Path to the server certificate to use when serving HTTPS." +
		" Alternatively, this can be set with the following environment variable: " + tlsServeCertPathEnvKey
	tlsServeCertPathEnvKey = "SIOP_AGENT_TLS_SERVE_CERT"

	tlsServeKeyPathFlagName  = "tls-serve-key"
	tlsServeKeyPathFlagUsage = "Path to the private key to use when serving HTTPS." +
		" Alternatively, this can be set with the following environment variable: " + tlsServeKeyPathFlagEnvKey
	tlsServeKeyPathFlagEnvKey = "SIOP_AGENT_TLS_SERVE_KEY"

	universalResolverURLFlagName      = "universal-resolver-url"
	universalResolverURLFlagShorthand = "r"
	universalResolverURLFlagUsage     = "Universal Resolver instance is running on. Format: HostName:Port." +
		" Alternatively, this can be set with the following environment variable: " + universalResolverURLEnvKey
	universalResolverURLEnvKey = "SIOP_AGENT_UNIVERSAL_RESOLVER_URL"

	universalResolverMethodsFlagName  = "universal-resolver-methods"
	universalResolverMethodsFlagUsage = "DID methods resolved through the universal resolver. All methods if not set." +
		" Alternatively, this can be set with the following environment variable: " + universalResolverMethodsEnvKey
	universalResolverMethodsEnvKey = "SIOP_AGENT_UNIVERSAL_RESOLVER_METHODS"

	logLevelFlagName  = "log-level"
	logLevelFlagUsage = "Sets the logging level." +
		" Possible values are [DEBUG, INFO, WARNING, ERROR, CRITICAL] (default is INFO)." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey
	logLevelEnvKey = "SIOP_AGENT_LOGLEVEL"

	holderDIDFlagName  = "holder-did"
	holderDIDFlagUsage = "DID of the holder signing the responses. A did:key is generated if not set." +
		" Alternatively, this can be set with the following environment variable: " + holderDIDEnvKey
	holderDIDEnvKey = "SIOP_AGENT_HOLDER_DID"

	holderKeyIDFlagName  = "holder-key-id"
	holderKeyIDFlagUsage = "Verification method of the holder DID the responses are signed with. Format: did#kid." +
		" Alternatively, this can be set with the following environment variable: " + holderKeyIDEnvKey
	holderKeyIDEnvKey = "SIOP_AGENT_HOLDER_KEY_ID"

	holderPrivateKeyFlagName  = "holder-private-key"
	holderPrivateKeyFlagUsage = "Base64url encoded ed25519 private key or seed of the holder key." +
		" Alternatively, this can be set with the following environment variable: " + holderPrivateKeyEnvKey
	holderPrivateKeyEnvKey = "SIOP_AGENT_HOLDER_PRIVATE_KEY" //nolint: gosec

	expiresInFlagName  = "expires-in"
	expiresInFlagUsage = "Lifetime of the responses in seconds. Defaults to 6000." +
		" Alternatively, this can be set with the following environment variable: " + expiresInEnvKey
	expiresInEnvKey = "SIOP_AGENT_EXPIRES_IN"

	didMethodsFlagName  = "did-methods"
	didMethodsFlagUsage = "DID methods accepted from relying parties that do not declare theirs. Defaults to ethr." +
		" Alternatively, this can be set with the following environment variable: " + didMethodsEnvKey
	didMethodsEnvKey = "SIOP_AGENT_DID_METHODS"

	registrationURIFlagName  = "registration-uri"
	registrationURIFlagUsage = "Passes the holder registration metadata by reference to this URI." +
		" Alternatively, this can be set with the following environment variable: " + registrationURIEnvKey
	registrationURIEnvKey = "SIOP_AGENT_REGISTRATION_URI"

	fetchRetriesFlagName  = "fetch-retries"
	fetchRetriesFlagUsage = "Number of times a failed request fetch is retried. Defaults to 3." +
		" Alternatively, this can be set with the following environment variable: " + fetchRetriesEnvKey
	fetchRetriesEnvKey = "SIOP_AGENT_FETCH_RETRIES"

	contextProviderFlagName  = "context-provider-url"
	contextProviderFlagUsage = "Comma-separated list of remote JSON-LD context provider URLs." +
		" Alternatively, this can be set with the following environment variable: " + contextProviderEnvKey
	contextProviderEnvKey = "SIOP_AGENT_CONTEXT_PROVIDER_URL"

	remoteContextsFlagName  = "remote-contexts"
	remoteContextsFlagUsage = "Fetch JSON-LD contexts that are not preloaded from their URL. Defaults to false." +
		" Alternatively, this can be set with the following environment variable: " + remoteContextsEnvKey
	remoteContextsEnvKey = "SIOP_AGENT_REMOTE_CONTEXTS"
)

const (
	serviceName         = "siop-agent"
	defaultFetchRetries = 3
	startupRetries      = 5
	sleep               = 1 * time.Second
	didFragmentParts    = 2
)

type tlsParameters struct {
	systemCertPool bool
	caCerts        []string
	serveCertPath  string
	serveKeyPath   string
}

type holderParameters struct {
	did        string
	keyID      string
	privateKey string
}

type agentParameters struct {
	hostURL                  string
	tlsParams                *tlsParameters
	holderParams             *holderParameters
	universalResolverURL     string
	universalResolverMethods []string
	expiresIn                time.Duration
	didMethods               []string
	registrationURI          string
	fetchRetries             uint64
	contextProviderURLs      []string
	remoteContexts           bool
}

type server interface {
	ListenAndServe(host string, router http.Handler) error
	ListenAndServeTLS(host, certFile, keyFile string, router http.Handler) error
}

// HTTPServer represents an actual HTTP server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler) error {
	return http.ListenAndServe(host, router) //nolint: gosec
}

// ListenAndServeTLS starts the server using the standard Go HTTPS implementation.
func (s *HTTPServer) ListenAndServeTLS(host, certFile, keyFile string, router http.Handler) error {
	return http.ListenAndServeTLS(host, certFile, keyFile, router) //nolint: gosec
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd(srv server) *cobra.Command {
	startCmd := createStartCmd(srv)

	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start siop-agent",
		Long:  "Start the self-issued OpenID holder agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getAgentParameters(cmd)
			if err != nil {
				return err
			}

			return startAgentService(parameters, srv)
		},
	}
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	startCmd.Flags().StringP(tlsSystemCertPoolFlagName, "", "", tlsSystemCertPoolFlagUsage)
	startCmd.Flags().StringArrayP(tlsCACertsFlagName, "", []string{}, tlsCACertsFlagUsage)
	startCmd.Flags().StringP(tlsServeCertPathFlagName, "", "", tlsServeCertPathFlagUsage)
	startCmd.Flags().StringP(tlsServeKeyPathFlagName, "", "", tlsServeKeyPathFlagUsage)
	startCmd.Flags().StringP(universalResolverURLFlagName, universalResolverURLFlagShorthand, "",
		universalResolverURLFlagUsage)
	startCmd.Flags().StringArrayP(universalResolverMethodsFlagName, "", []string{},
		universalResolverMethodsFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "", "INFO", logLevelFlagUsage)

	// holder
	startCmd.Flags().StringP(holderDIDFlagName, "", "", holderDIDFlagUsage)
	startCmd.Flags().StringP(holderKeyIDFlagName, "", "", holderKeyIDFlagUsage)
	startCmd.Flags().StringP(holderPrivateKeyFlagName, "", "", holderPrivateKeyFlagUsage)
	startCmd.Flags().StringP(expiresInFlagName, "", "", expiresInFlagUsage)
	startCmd.Flags().StringArrayP(didMethodsFlagName, "", []string{}, didMethodsFlagUsage)
	startCmd.Flags().StringP(registrationURIFlagName, "", "", registrationURIFlagUsage)
	startCmd.Flags().StringP(fetchRetriesFlagName, "", "", fetchRetriesFlagUsage)
	startCmd.Flags().StringArrayP(contextProviderFlagName, "", []string{}, contextProviderFlagUsage)
	startCmd.Flags().StringP(remoteContextsFlagName, "", "", remoteContextsFlagUsage)
}

//nolint:funlen,gocyclo
func getAgentParameters(cmd *cobra.Command) (*agentParameters, error) {
	hostURL, err := cmdutils.GetUserSetVarFromString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	tlsParams, err := getTLS(cmd)
	if err != nil {
		return nil, err
	}

	holderParams, err := getHolderParams(cmd)
	if err != nil {
		return nil, err
	}

	universalResolverURL, err := cmdutils.GetUserSetVarFromString(cmd, universalResolverURLFlagName,
		universalResolverURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	universalResolverMethods, err := cmdutils.GetUserSetVarFromArrayString(cmd, universalResolverMethodsFlagName,
		universalResolverMethodsEnvKey, true)
	if err != nil {
		return nil, err
	}

	logLevel, err := cmdutils.GetUserSetVarFromString(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	expiresIn, err := getDuration(cmd, expiresInFlagName, expiresInEnvKey, siop.DefaultExpiresIn)
	if err != nil {
		return nil, err
	}

	didMethods, err := cmdutils.GetUserSetVarFromArrayString(cmd, didMethodsFlagName, didMethodsEnvKey, true)
	if err != nil {
		return nil, err
	}

	registrationURI, err := cmdutils.GetUserSetVarFromString(cmd, registrationURIFlagName, registrationURIEnvKey, true)
	if err != nil {
		return nil, err
	}

	fetchRetries, err := getUint(cmd, fetchRetriesFlagName, fetchRetriesEnvKey, defaultFetchRetries)
	if err != nil {
		return nil, err
	}

	contextProviderURLs, err := cmdutils.GetUserSetVarFromArrayString(cmd, contextProviderFlagName,
		contextProviderEnvKey, true)
	if err != nil {
		return nil, err
	}

	remoteContexts, err := getBool(cmd, remoteContextsFlagName, remoteContextsEnvKey)
	if err != nil {
		return nil, err
	}

	err = setLogLevel(logLevel)
	if err != nil {
		return nil, err
	}

	logger.Infof("logger level set to %s", logLevel)

	return &agentParameters{
		hostURL:                  hostURL,
		tlsParams:                tlsParams,
		holderParams:             holderParams,
		universalResolverURL:     universalResolverURL,
		universalResolverMethods: universalResolverMethods,
		expiresIn:                expiresIn,
		didMethods:               didMethods,
		registrationURI:          registrationURI,
		fetchRetries:             fetchRetries,
		contextProviderURLs:      contextProviderURLs,
		remoteContexts:           remoteContexts,
	}, nil
}

func getHolderParams(cmd *cobra.Command) (*holderParameters, error) {
	didID, err := cmdutils.GetUserSetVarFromString(cmd, holderDIDFlagName, holderDIDEnvKey, true)
	if err != nil {
		return nil, err
	}

	keyID, err := cmdutils.GetUserSetVarFromString(cmd, holderKeyIDFlagName, holderKeyIDEnvKey, didID == "")
	if err != nil {
		return nil, err
	}

	privateKey, err := cmdutils.GetUserSetVarFromString(cmd, holderPrivateKeyFlagName, holderPrivateKeyEnvKey,
		didID == "")
	if err != nil {
		return nil, err
	}

	return &holderParameters{did: didID, keyID: keyID, privateKey: privateKey}, nil
}

func getDuration(cmd *cobra.Command, flagName, envKey string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := getUint(cmd, flagName, envKey, uint64(defaultValue/time.Second))
	if err != nil {
		return 0, err
	}

	return time.Duration(seconds) * time.Second, nil
}

func getUint(cmd *cobra.Command, flagName, envKey string, defaultValue uint64) (uint64, error) {
	value, err := cmdutils.GetUserSetVarFromString(cmd, flagName, envKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		return defaultValue, nil
	}

	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s %s", flagName, value)
	}

	return n, nil
}

func getBool(cmd *cobra.Command, flagName, envKey string) (bool, error) {
	value, err := cmdutils.GetUserSetVarFromString(cmd, flagName, envKey, true)
	if err != nil {
		return false, err
	}

	if value == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrapf(err, "failed to parse %s %s", flagName, value)
	}

	return b, nil
}

func setLogLevel(logLevel string) error {
	if logLevel == "" {
		logLevel = "INFO"
	}

	err := setEdgeCoreLogLevel(logLevel)
	if err != nil {
		return err
	}

	return setAriesFrameworkLogLevel(logLevel)
}

func setEdgeCoreLogLevel(logLevel string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
	}

	log.SetLevel("", level)

	return nil
}

func setAriesFrameworkLogLevel(logLevel string) error {
	level, err := arieslog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
	}

	arieslog.SetLevel("", level)

	return nil
}

func getTLS(cmd *cobra.Command) (*tlsParameters, error) {
	tlsSystemCertPool, err := getBool(cmd, tlsSystemCertPoolFlagName, tlsSystemCertPoolEnvKey)
	if err != nil {
		return nil, err
	}

	tlsCACerts, err := cmdutils.GetUserSetVarFromArrayString(cmd, tlsCACertsFlagName, tlsCACertsEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsServeCertPath, err := cmdutils.GetUserSetVarFromString(cmd, tlsServeCertPathFlagName, tlsServeCertPathEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsServeKeyPath, err := cmdutils.GetUserSetVarFromString(cmd, tlsServeKeyPathFlagName, tlsServeKeyPathFlagEnvKey, true)
	if err != nil {
		return nil, err
	}

	return &tlsParameters{
		systemCertPool: tlsSystemCertPool,
		caCerts:        tlsCACerts,
		serveCertPath:  tlsServeCertPath,
		serveKeyPath:   tlsServeKeyPath,
	}, nil
}

func startAgentService(parameters *agentParameters, srv server) error {
	rootCAs, err := tlsutils.GetCertPool(parameters.tlsParams.systemCertPool, parameters.tlsParams.caCerts)
	if err != nil {
		return err
	}

	tlsConfig := &tls.Config{RootCAs: rootCAs, MinVersion: tls.VersionTLS12}

	router := mux.NewRouter()

	// add health check endpoint
	addHandlers(router, healthcheck.New().GetOperations())

	ariesCtx, err := createAriesAgent(parameters, tlsConfig)
	if err != nil {
		return err
	}

	err = addHolderHandlers(parameters, ariesCtx, router, tlsConfig)
	if err != nil {
		return errors.Wrap(err, "failed to add holder handlers")
	}

	handler := otelhttp.NewHandler(constructCORSHandler(router), serviceName)

	logger.Infof("starting siop agent rest server on host %s", parameters.hostURL)

	if parameters.tlsParams.serveCertPath == "" && parameters.tlsParams.serveKeyPath == "" {
		return srv.ListenAndServe(parameters.hostURL, handler)
	}

	return srv.ListenAndServeTLS(
		parameters.hostURL,
		parameters.tlsParams.serveCertPath,
		parameters.tlsParams.serveKeyPath,
		handler)
}

func addHandlers(router *mux.Router, handlers []restapi.Handler) {
	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}
}

func addHolderHandlers(parameters *agentParameters, ctx *ariesctx.Provider, router *mux.Router,
	tlsConfig *tls.Config) error {
	holderID, err := holderIdentity(parameters.holderParams, ctx.KMS())
	if err != nil {
		return err
	}

	logger.Infof("holder identity %s signing with %s", holderID.DID, holderID.KeyID)

	config, err := holderConfig(parameters, holderID)
	if err != nil {
		return err
	}

	loader, err := createDocumentLoader(parameters, ctx, tlsConfig)
	if err != nil {
		return err
	}

	client := transport.New(transport.WithTLSConfig(tlsConfig),
		transport.WithRetry(parameters.fetchRetries, sleep))

	signer := crypto.New(ctx.KMS(), ctx.Crypto(), ctx.VDRegistry(), loader)

	builder, err := response.New(config, signer, client, response.WithPresentationSigner(signer))
	if err != nil {
		return err
	}

	a, err := authenticator.New(&authenticator.Config{
		Verifier: verifier.New(identity.New(ctx.VDRegistry()), config),
		Matcher:  presentationex.NewMatcher(presentationex.NewEvaluator(loader)),
		Sender:   builder,
		Fetcher:  client,
	})
	if err != nil {
		return err
	}

	holderController, err := holder.New(&holderops.Config{
		Authenticator:  a,
		DocumentLoader: loader,
		VDR:            ctx.VDRegistry(),
	})
	if err != nil {
		return err
	}

	addHandlers(router, holderController.GetOperations())

	return nil
}

func holderConfig(parameters *agentParameters, holderID siop.SigningIdentity) (siop.Config, error) {
	opts := []siop.ConfigOpt{siop.WithExpiresIn(parameters.expiresIn)}

	if len(parameters.didMethods) > 0 {
		opts = append(opts, siop.WithIdentityMethods(parameters.didMethods...))
	}

	if parameters.registrationURI != "" {
		opts = append(opts, siop.WithRegistrationReference(parameters.registrationURI))
	}

	config := siop.NewConfig(holderID, opts...)

	if err := config.Validate(); err != nil {
		return siop.Config{}, errors.Wrap(err, "invalid holder configuration")
	}

	return config, nil
}

// holderIdentity imports the configured holder key into the KMS, or creates a did:key holder when none is set.
// The KMS key id is the fragment of the verification method.
func holderIdentity(params *holderParameters, keyManager kms.KeyManager) (siop.SigningIdentity, error) {
	if params.did == "" {
		_, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return siop.SigningIdentity{}, errors.Wrap(err, "failed to generate holder key")
		}

		didKey, keyID := fingerprint.CreateDIDKey(privateKey.Public().(ed25519.PublicKey))

		return importHolderKey(siop.SigningIdentity{DID: didKey, KeyID: keyID}, privateKey, keyManager)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(params.privateKey, "="))
	if err != nil {
		return siop.SigningIdentity{}, errors.Wrap(err, "failed to decode holder private key")
	}

	var privateKey ed25519.PrivateKey

	switch len(raw) {
	case ed25519.SeedSize:
		privateKey = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		privateKey = raw
	default:
		return siop.SigningIdentity{}, errors.Errorf("invalid holder private key size %d", len(raw))
	}

	return importHolderKey(siop.SigningIdentity{DID: params.did, KeyID: params.keyID}, privateKey, keyManager)
}

func importHolderKey(holderID siop.SigningIdentity, privateKey ed25519.PrivateKey,
	keyManager kms.KeyManager) (siop.SigningIdentity, error) {
	parts := strings.Split(holderID.KeyID, "#")
	if len(parts) != didFragmentParts || parts[0] != holderID.DID || parts[1] == "" {
		return siop.SigningIdentity{}, errors.Errorf("holder key id %s is not a verification method of %s",
			holderID.KeyID, holderID.DID)
	}

	_, _, err := keyManager.ImportPrivateKey(privateKey, kms.ED25519Type, kms.WithKeyID(parts[1]))
	if err != nil {
		return siop.SigningIdentity{}, errors.Wrap(err, "failed to import holder key")
	}

	return holderID, nil
}

func createDocumentLoader(parameters *agentParameters, ctx *ariesctx.Provider,
	tlsConfig *tls.Config) (jsonld.DocumentLoader, error) {
	var loader jsonld.DocumentLoader

	httpClient := &http.Client{Transport: otelhttp.NewTransport(&http.Transport{TLSClientConfig: tlsConfig})}

	err := retry(func() error {
		var err error

		opts := []ld.Opt{
			ld.WithHTTPClient(httpClient),
			ld.WithContextProviders(parameters.contextProviderURLs...),
		}

		if parameters.remoteContexts {
			opts = append(opts, ld.WithRemoteContexts())
		}

		loader, err = ld.NewDocumentLoader(ctx, opts...)

		return err
	}, startupRetries)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create document loader")
	}

	return loader, nil
}

func retry(fn func() error, numRetries uint64) error {
	return backoff.RetryNotify(
		fn,
		backoff.WithMaxRetries(backoff.NewConstantBackOff(sleep), numRetries),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to load json-ld contexts, will sleep for %s before trying again : %s",
				t, retryErr)
		},
	)
}

func constructCORSHandler(handler http.Handler) http.Handler {
	return cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(handler)
}

func acceptsDID(methods []string) func(method string) bool {
	return func(method string) bool {
		if len(methods) == 0 {
			return true
		}

		for _, m := range methods {
			if m == method {
				return true
			}
		}

		return false
	}
}

func createAriesAgent(parameters *agentParameters, tlsConfig *tls.Config) (*ariesctx.Provider, error) {
	opts := []aries.Option{
		aries.WithStoreProvider(mem.NewProvider()),
		aries.WithProtocolStateStoreProvider(mem.NewProvider()),
		aries.WithVDR(vdrkey.New()),
	}

	if parameters.universalResolverURL != "" {
		universalResolverVDR, err := httpbinding.New(parameters.universalResolverURL,
			httpbinding.WithAccept(acceptsDID(parameters.universalResolverMethods)),
			httpbinding.WithHTTPClient(&http.Client{
				Transport: otelhttp.NewTransport(&http.Transport{TLSClientConfig: tlsConfig}),
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to create new universal resolver vdr: %w", err)
		}

		opts = append(opts, aries.WithVDR(universalResolverVDR))
	}

	framework, err := aries.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("aries-framework - failed to initialize framework : %w", err)
	}

	ctx, err := framework.Context()
	if err != nil {
		return nil, fmt.Errorf("aries-framework - failed to get aries context : %w", err)
	}

	return ctx, nil
}
