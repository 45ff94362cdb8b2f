// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package obo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/cap-entra/sdk/errkind"
)

// ErrorResponse is the JSON body written by WriteError. Its fields are
// generic and safe to return to any caller.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// WriteError writes an API error response for err. Token validation
// failures are 401 with an invalid_token challenge, a CAE condition is 401
// with a claims challenge (a bare insufficient_claims challenge when the
// provider sent no claims), and provider or configuration failures are 5xx.
// The body never includes err's text.
func WriteError(w http.ResponseWriter, err error, realm string) {
	kind := errkind.Of(err)
	s := kind.Suggestion()
	status := s.Status

	var ce *CAERequiredError
	switch {
	case errors.As(err, &ce):
		s = errkind.CAERequired.Suggestion()
		status = http.StatusUnauthorized
		if ce.Claims == "" {
			// nothing for the client to satisfy; an empty claims parameter
			// wouldn't parse as a challenge
			w.Header().Set("WWW-Authenticate", bearerChallenge(realm, CAEErrorCode))
			break
		}
		w.Header().Set("WWW-Authenticate", BuildCAEChallengeHeader(EncodeClaims(ce.Claims), CAEErrorCode, realm))
	case kind == errkind.TokenValidation, kind == errkind.NotAuthenticated:
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", bearerChallenge(realm, s.Code))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: s.Code, Description: s.Message})
}

func bearerChallenge(realm, code string) string {
	if realm == "" {
		return fmt.Sprintf("Bearer error=%s", quote(code))
	}
	return fmt.Sprintf("Bearer realm=%s, error=%s", quote(realm), quote(code))
}
