/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/trustbloc/siop-agent/pkg/internal/common/adapterutil"
	"github.com/trustbloc/siop-agent/pkg/siop"
)

const (
	qrRedirectURL = "redirectUrl"
	qrStateID     = "stateId"
	qrState       = "state"
)

type qrCodeJSON struct {
	RedirectURL string `json:"redirectUrl"`
	State       string `json:"state"`
	StateID     string `json:"stateId"`
}

// ParseQRCode parses the values a relying party shows in its QR code, either as a query string
// (redirectUrl=...&stateId=...) or as a JSON object.
func ParseQRCode(raw string) (*siop.QRCodeValues, error) {
	raw = strings.TrimSpace(raw)

	qr := &qrCodeJSON{}

	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), qr); err != nil {
			return nil, malformed(fmt.Errorf("parse qr code: %w", err))
		}
	} else {
		values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return nil, malformed(fmt.Errorf("parse qr code: %w", err))
		}

		qr.RedirectURL = values.Get(qrRedirectURL)
		qr.StateID = values.Get(qrStateID)
		qr.State = values.Get(qrState)
	}

	state := qr.StateID
	if state == "" {
		state = qr.State
	}

	if state == "" {
		return nil, malformed(fmt.Errorf("qr code: missing %s", qrStateID))
	}

	if !adapterutil.ValidHTTPURL(qr.RedirectURL) {
		return nil, malformed(fmt.Errorf("qr code: invalid %s %q", qrRedirectURL, qr.RedirectURL))
	}

	return &siop.QRCodeValues{State: state, RedirectURL: qr.RedirectURL}, nil
}

// FetchURL returns the URL the authentication request for qr is retrieved from.
func FetchURL(qr *siop.QRCodeValues) (string, error) {
	u, err := url.Parse(qr.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}

	query := u.Query()
	query.Set(qrStateID, qr.State)
	u.RawQuery = query.Encode()

	return u.String(), nil
}
