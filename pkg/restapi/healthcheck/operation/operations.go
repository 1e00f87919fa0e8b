/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"net/http"
	"time"

	"github.com/trustbloc/siop-agent/pkg/restapi"
	commhttp "github.com/trustbloc/siop-agent/pkg/restapi/internal/common/http"
)

// HealthCheckPath is the endpoint the agent reports its liveness on.
const HealthCheckPath = "/healthcheck"

type healthCheckResp struct {
	Status      string    `json:"status"`
	CurrentTime time.Time `json:"currentTime"`
}

// Operation serves the health check.
type Operation struct {
	now func() time.Time
}

// New returns the health check operation.
func New() *Operation {
	return &Operation{now: time.Now}
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []restapi.Handler {
	return []restapi.Handler{
		restapi.NewHTTPHandler(HealthCheckPath, http.MethodGet, o.healthCheckHandler),
	}
}

func (o *Operation) healthCheckHandler(rw http.ResponseWriter, _ *http.Request) {
	commhttp.WriteResponse(rw, http.StatusOK, &healthCheckResp{
		Status:      "success",
		CurrentTime: o.now(),
	})
}
