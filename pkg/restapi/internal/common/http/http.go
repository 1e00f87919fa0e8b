/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"encoding/json"
	"net/http"

	"github.com/trustbloc/edge-core/pkg/log"
)

var logger = log.New("siop-agent/restapi")

// ErrorResponse to send error message in the response.
type ErrorResponse struct {
	Message string `json:"errMessage,omitempty"`
}

// WriteErrorResponse write error resp.
func WriteErrorResponse(rw http.ResponseWriter, status int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	err := json.NewEncoder(rw).Encode(ErrorResponse{
		Message: msg,
	})
	if err != nil {
		logger.Errorf("Unable to send error message, %s", err)
	}
}

// WriteErrorResponseWithLog write error resp and logs it with the endpoint it happened on.
func WriteErrorResponseWithLog(rw http.ResponseWriter, status int, msg, endpoint string, l log.Logger) {
	l.Errorf("endpoint=[%s] status=[%d] errMsg=[%s]", endpoint, status, msg)

	WriteErrorResponse(rw, status, msg)
}

// WriteResponse writes interface value to response.
func WriteResponse(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	err := json.NewEncoder(rw).Encode(v)
	if err != nil {
		logger.Errorf("Unable to send response, %s", err)
	}
}

// WriteResponseWithLog writes interface value to response and logs the endpoint it was sent on.
func WriteResponseWithLog(rw http.ResponseWriter, status int, v interface{}, endpoint string, l log.Logger) {
	l.Debugf("endpoint=[%s] status=[%d]", endpoint, status)

	WriteResponse(rw, status, v)
}
