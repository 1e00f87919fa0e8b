/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package healthcheck

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/siop-agent/pkg/restapi/healthcheck/operation"
)

func TestController_GetOperations(t *testing.T) {
	t.Parallel()

	t.Run("test success", func(t *testing.T) {
		t.Parallel()

		controller := New()
		require.NotNil(t, controller)
		ops := controller.GetOperations()

		require.Len(t, ops, 1)
		require.Equal(t, operation.HealthCheckPath, ops[0].Path())
		require.Equal(t, http.MethodGet, ops[0].Method())
	})
}
