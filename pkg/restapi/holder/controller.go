/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package holder

import (
	"github.com/trustbloc/siop-agent/pkg/restapi"
	"github.com/trustbloc/siop-agent/pkg/restapi/holder/operation"
)

// New returns new controller instance.
func New(config *operation.Config) (*Controller, error) {
	holderService, err := operation.New(config)
	if err != nil {
		return nil, err
	}

	return &Controller{handlers: holderService.GetRESTHandlers()}, nil
}

// Controller contains handlers for controller.
type Controller struct {
	handlers []restapi.Handler
}

// GetOperations returns all controller endpoints.
func (c *Controller) GetOperations() []restapi.Handler {
	return c.handlers
}
