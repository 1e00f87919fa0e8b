/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package healthcheck

import (
	"github.com/trustbloc/siop-agent/pkg/restapi"
	"github.com/trustbloc/siop-agent/pkg/restapi/healthcheck/operation"
)

// New returns new controller instance.
func New() *Controller {
	return &Controller{handlers: operation.New().GetRESTHandlers()}
}

// Controller contains handlers for controller.
type Controller struct {
	handlers []restapi.Handler
}

// GetOperations returns all controller endpoints.
func (c *Controller) GetOperations() []restapi.Handler {
	return c.handlers
}
