/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	mockkms "github.com/hyperledger/aries-framework-go/pkg/mock/kms"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/siop-agent/pkg/siop"
)

type mockServer struct{}

func (s *mockServer) ListenAndServe(host string, handler http.Handler) error {
	return nil
}

func (s *mockServer) ListenAndServeTLS(host, certPath, keyPath string, handler http.Handler) error {
	return nil
}

func TestListenAndServe(t *testing.T) {
	var w HTTPServer
	err := w.ListenAndServe("wronghost", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "address wronghost: missing port in address")
}

func TestStartCmdContents(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	require.Equal(t, "start", startCmd.Use)
	require.Equal(t, "Start siop-agent", startCmd.Short)
	require.Equal(t, "Start the self-issued OpenID holder agent", startCmd.Long)

	checkFlagPropertiesCorrect(t, startCmd, hostURLFlagName, hostURLFlagShorthand, hostURLFlagUsage)
	checkFlagPropertiesCorrect(t, startCmd, universalResolverURLFlagName, universalResolverURLFlagShorthand,
		universalResolverURLFlagUsage)
}

func TestStartCmdWithBlankArg(t *testing.T) {
	t.Run("test blank host url arg", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		args := []string{"--" + hostURLFlagName, ""}
		startCmd.SetArgs(args)

		err := startCmd.Execute()
		require.Error(t, err)
		require.Equal(t, "host-url value is empty", err.Error())
	})
}

func TestStartCmdWithMissingArg(t *testing.T) {
	t.Run("test missing host url arg", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		err := startCmd.Execute()

		require.Error(t, err)
		require.Equal(t,
			"Neither host-url (command line flag) nor SIOP_AGENT_HOST_URL (environment variable) have been set.",
			err.Error())
	})

	t.Run("test holder did without key id", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		args := []string{
			"--" + hostURLFlagName, "localhost:8080",
			"--" + holderDIDFlagName, "did:example:holder",
		}
		startCmd.SetArgs(args)

		err := startCmd.Execute()
		require.Error(t, err)
		require.Equal(t,
			"Neither holder-key-id (command line flag) nor SIOP_AGENT_HOLDER_KEY_ID (environment variable) have been set.",
			err.Error())
	})
}

func TestStartCmdWithBlankEnvVar(t *testing.T) {
	t.Run("test blank host env var", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		err := os.Setenv(hostURLEnvKey, "")
		require.NoError(t, err)

		defer func() { require.NoError(t, os.Unsetenv(hostURLEnvKey)) }()

		err = startCmd.Execute()
		require.Error(t, err)
		require.Equal(t, "SIOP_AGENT_HOST_URL value is empty", err.Error())
	})
}

func TestStartCmdValidArgs(t *testing.T) {
	t.Run("generated holder", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		args := []string{
			"--" + hostURLFlagName, "localhost:8080",
			"--" + expiresInFlagName, "60",
			"--" + didMethodsFlagName, "example",
			"--" + fetchRetriesFlagName, "1",
			"--" + logLevelFlagName, "DEBUG",
		}
		startCmd.SetArgs(args)

		err := startCmd.Execute()
		require.NoError(t, err)
	})

	t.Run("universal resolver", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		args := []string{
			"--" + hostURLFlagName, "localhost:8080",
			"--" + universalResolverURLFlagName, "https://uniresolver.example/1.0/identifiers",
			"--" + universalResolverMethodsFlagName, "orb",
			"--" + tlsSystemCertPoolFlagName, "true",
		}
		startCmd.SetArgs(args)

		err := startCmd.Execute()
		require.NoError(t, err)
	})

	t.Run("remote contexts", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		args := []string{
			"--" + hostURLFlagName, "localhost:8080",
			"--" + remoteContextsFlagName, "true",
		}
		startCmd.SetArgs(args)

		err := startCmd.Execute()
		require.NoError(t, err)
	})

	t.Run("configured holder key", func(t *testing.T) {
		startCmd := GetStartCmd(&mockServer{})

		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		didKey, keyID := fingerprint.CreateDIDKey(pub)

		args := []string{
			"--" + hostURLFlagName, "localhost:8080",
			"--" + holderDIDFlagName, didKey,
			"--" + holderKeyIDFlagName, keyID,
			"--" + holderPrivateKeyFlagName, base64.RawURLEncoding.EncodeToString(priv.Seed()),
			"--" + registrationURIFlagName, "https://holder.example/registration",
			"--" + tlsServeCertPathFlagName, "cert.pem",
			"--" + tlsServeKeyPathFlagName, "key.pem",
		}
		startCmd.SetArgs(args)

		err = startCmd.Execute()
		require.NoError(t, err)
	})
}

func TestStartCmdValidArgsEnvVar(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	require.NoError(t, os.Setenv(hostURLEnvKey, "localhost:8080"))
	require.NoError(t, os.Setenv(universalResolverMethodsEnvKey, "orb"))

	defer func() {
		require.NoError(t, os.Unsetenv(hostURLEnvKey))
		require.NoError(t, os.Unsetenv(universalResolverMethodsEnvKey))
	}()

	err := startCmd.Execute()
	require.NoError(t, err)
}

func TestStartCmdInvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  string
	}{
		{
			name: "invalid log level",
			args: []string{"--" + logLevelFlagName, "loud"},
			err:  "failed to parse log level",
		},
		{
			name: "invalid expiry",
			args: []string{"--" + expiresInFlagName, "soon"},
			err:  "failed to parse expires-in soon",
		},
		{
			name: "invalid fetch retries",
			args: []string{"--" + fetchRetriesFlagName, "-1"},
			err:  "failed to parse fetch-retries -1",
		},
		{
			name: "invalid remote contexts",
			args: []string{"--" + remoteContextsFlagName, "sometimes"},
			err:  "failed to parse remote-contexts sometimes",
		},
		{
			name: "zero expiry",
			args: []string{"--" + expiresInFlagName, "0"},
			err:  "invalid holder configuration",
		},
		{
			name: "invalid holder private key",
			args: []string{
				"--" + holderDIDFlagName, "did:example:holder",
				"--" + holderKeyIDFlagName, "did:example:holder#key-1",
				"--" + holderPrivateKeyFlagName, "!!!",
			},
			err: "failed to decode holder private key",
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			startCmd := GetStartCmd(&mockServer{})

			startCmd.SetArgs(append([]string{"--" + hostURLFlagName, "localhost:8080"}, tc.args...))

			err := startCmd.Execute()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestTLSSystemCertPoolInvalidArgsEnvVar(t *testing.T) {
	startCmd := GetStartCmd(&mockServer{})

	require.NoError(t, os.Setenv(hostURLEnvKey, "localhost:8080"))
	require.NoError(t, os.Setenv(tlsSystemCertPoolEnvKey, "wrongvalue"))

	defer func() {
		require.NoError(t, os.Unsetenv(hostURLEnvKey))
		require.NoError(t, os.Unsetenv(tlsSystemCertPoolEnvKey))
	}()

	err := startCmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid syntax")
}

func TestHolderIdentity(t *testing.T) {
	t.Parallel()

	t.Run("generated did:key", func(t *testing.T) {
		t.Parallel()

		holderID, err := holderIdentity(&holderParameters{}, &mockkms.KeyManager{})
		require.NoError(t, err)
		require.Contains(t, holderID.DID, "did:key:")
		require.Contains(t, holderID.KeyID, holderID.DID+"#")
	})

	t.Run("full private key", func(t *testing.T) {
		t.Parallel()

		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		holderID, err := holderIdentity(&holderParameters{
			did:        "did:example:holder",
			keyID:      "did:example:holder#key-1",
			privateKey: base64.RawURLEncoding.EncodeToString(priv),
		}, &mockkms.KeyManager{})
		require.NoError(t, err)
		require.Equal(t, siop.SigningIdentity{DID: "did:example:holder", KeyID: "did:example:holder#key-1"}, holderID)
	})

	t.Run("invalid key size", func(t *testing.T) {
		t.Parallel()

		_, err := holderIdentity(&holderParameters{
			did:        "did:example:holder",
			keyID:      "did:example:holder#key-1",
			privateKey: base64.RawURLEncoding.EncodeToString([]byte("short")),
		}, &mockkms.KeyManager{})
		require.EqualError(t, err, "invalid holder private key size 5")
	})

	t.Run("key id of another did", func(t *testing.T) {
		t.Parallel()

		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		_, err = holderIdentity(&holderParameters{
			did:        "did:example:holder",
			keyID:      "did:example:other#key-1",
			privateKey: base64.RawURLEncoding.EncodeToString(priv.Seed()),
		}, &mockkms.KeyManager{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "is not a verification method of did:example:holder")
	})

	t.Run("import error", func(t *testing.T) {
		t.Parallel()

		_, err := holderIdentity(&holderParameters{}, &mockkms.KeyManager{ImportPrivateKeyErr: errors.New("kms down")})
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to import holder key: kms down")
	})
}

func TestAcceptsDID(t *testing.T) {
	t.Parallel()

	require.True(t, acceptsDID(nil)("anything"))
	require.True(t, acceptsDID([]string{"orb", "ion"})("ion"))
	require.False(t, acceptsDID([]string{"orb"})("key"))
}

func TestCORSHandler(t *testing.T) {
	t.Parallel()

	handler := constructCORSHandler(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/holder/request", nil)
	req.Header.Set("Origin", "https://wallet.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRetry(t *testing.T) {
	t.Parallel()

	calls := 0

	start := time.Now()
	err := retry(func() error {
		calls++

		if calls < 2 {
			return errors.New("not yet")
		}

		return nil
	}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.GreaterOrEqual(t, time.Since(start), sleep)
}

func checkFlagPropertiesCorrect(t *testing.T, cmd *cobra.Command, flagName, flagShorthand, flagUsage string) {
	flag := cmd.Flag(flagName)

	require.NotNil(t, flag)
	require.Equal(t, flagName, flag.Name)
	require.Equal(t, flagShorthand, flag.Shorthand)
	require.Equal(t, flagUsage, flag.Usage)
	require.Equal(t, "", flag.Value.String())

	flagAnnotations := flag.Annotations
	require.Nil(t, flagAnnotations)
}
