package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"modelmarket/internal/adapters/backend"
	"modelmarket/internal/auth"
	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
	"modelmarket/internal/services/runs"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("get: %w", ports.ErrNotFound), CodeNotFound},
		{ports.ErrConflict, CodeConflict},
		{fmt.Errorf("%w: name", domain.ErrInvalidRecord), CodeValidationError},
		{runs.ErrReportNotReady, CodeConflict},
		{auth.ErrExpiredToken, CodeUnauthorized},
		{&backend.StatusError{Code: 500}, CodeBadGateway},
		{backend.ErrNotConfigured, CodeBadGateway},
		{errors.New("pq: something odd"), CodeInternalError},
		{Forbidden("nope"), CodeForbidden},
	}
	for _, tc := range cases {
		if got := FromError(tc.err); got.Code != tc.code {
			t.Errorf("FromError(%v) = %s, want %s", tc.err, got.Code, tc.code)
		}
	}
	if got := FromError(errors.New("secret dsn")); got.Message == "secret dsn" {
		t.Error("internal error text leaked")
	}
}

func TestWriteErrorStatusMatchesCode(t *testing.T) {
	codes := []string{CodeValidationError, CodeNotFound, CodeUnauthorized, CodeForbidden, CodeConflict, CodeInternalError, CodeBadGateway}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("written status and body agree", prop.ForAll(
		func(idx int, msg, reqID string) bool {
			e := New(codes[idx], msg)
			rec := httptest.NewRecorder()
			WriteError(rec, e, reqID)

			var body APIError
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				return false
			}
			return rec.Code == e.HTTPStatusCode() &&
				body.Code == codes[idx] &&
				body.Message == msg &&
				body.RequestID == reqID &&
				rec.Header().Get("Content-Type") == "application/json"
		},
		gen.IntRange(0, len(codes)-1),
		gen.AlphaString(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestBadGatewayStatus(t *testing.T) {
	if got := New(CodeBadGateway, "x").HTTPStatusCode(); got != http.StatusBadGateway {
		t.Errorf("status = %d", got)
	}
}
