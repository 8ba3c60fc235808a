/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpapi implements D7: a thin chi-routed HTTP ingress mapping
// external operations onto C10/C8/C9, kept thin by construction — handlers
// decode/validate, call exactly one orchestrator operation, and map the
// returned error to a status code via A2's table.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the JSON envelope for every non-2xx response.
type ErrorResponse struct {
	Code        string `json:"code,omitempty"`
	Error       string `json:"error"`
	Message     string `json:"message"`
	Correlation string `json:"correlation_id,omitempty"`
}

// Respond writes v as a JSON body with the given status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// RespondAppError maps err to a status code via A2's ErrorType table and
// writes the error envelope. A plain (non-AppError) error is treated as
// internal.
func RespondAppError(w http.ResponseWriter, err error) {
	ae, ok := orcherrors.As(err)
	if !ok {
		Respond(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
		return
	}
	if ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", ae.RetryAfter.Seconds()))
	}
	Respond(w, ae.StatusCode, ErrorResponse{
		Code:        ae.Code,
		Error:       string(ae.Type),
		Message:     ae.Error(),
		Correlation: ae.Correlation,
	})
}

// decode reads a JSON request body into dst, rejecting unknown fields and
// trailing data.
func decode(r *http.Request, dst any) error {
	const maxBody = 1 << 20 // 1 MiB

	body := http.MaxBytesReader(nil, r.Body, maxBody)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return fmt.Errorf("request body too large (max 1 MiB)")
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty")
		default:
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// DecodeAndValidate decodes r's JSON body into dst and runs struct-tag
// validation, writing a 400 response and returning false on either failure.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decode(r, dst); err != nil {
		RespondAppError(w, orcherrors.Validation(err.Error()))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		RespondAppError(w, orcherrors.Validation(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, "; ")
}
