/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package adapterutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// DecodeJSON converts a value with a custom JSON encoding (credentials, presentations) into its generic
// JSON form or into the custom struct passed as out.
func DecodeJSON(in json.Marshaler, out interface{}) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal as json : %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	err = decoder.Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode json : %w", err)
	}

	return nil
}

// StringsContains check if the string is present in the string array.
func StringsContains(val string, slice []string) bool {
	for _, s := range slice {
		if val == s {
			return true
		}
	}

	return false
}

// ValidHTTPURL checks if the string is a valid http url.
func ValidHTTPURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
