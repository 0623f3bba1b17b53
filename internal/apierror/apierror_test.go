/*
Copyright 2024 Blnk Finance Authors.

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

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"NotFound", apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil), http.StatusNotFound},
		{"Conflict", apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil), http.StatusConflict},
		{"StaleState", apierror.NewAPIError(apierror.ErrStaleState, "no longer available", nil), http.StatusConflict},
		{"InvalidInput", apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil), http.StatusBadRequest},
		{"Unauthorized", apierror.NewAPIError(apierror.ErrUnauthorized, "not assigned", nil), http.StatusForbidden},
		{"NoOperators", apierror.NewAPIError(apierror.ErrNoOperators, "no operators", nil), http.StatusUnprocessableEntity},
		{"InternalServerError", apierror.NewAPIError(apierror.ErrInternalServer, "Internal server error", nil), http.StatusInternalServerError},
		{"Wrapped", fmt.Errorf("accept: %w", apierror.NewAPIError(apierror.ErrNotFound, "gone", nil)), http.StatusNotFound},
		{"Unknown Error", errors.New("Unknown error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", apierror.NewAPIError(apierror.ErrStaleState, "stale", nil))
	assert.True(t, apierror.IsCode(err, apierror.ErrStaleState))
	assert.False(t, apierror.IsCode(err, apierror.ErrNotFound))
	assert.False(t, apierror.IsCode(nil, apierror.ErrInternalServer))
	assert.Equal(t, apierror.ErrInternalServer, apierror.CodeOf(errors.New("plain")))
}
