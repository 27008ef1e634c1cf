package netsuite

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// APIError error de la REST API (application/vnd.oracle.resource+json; type=error).
type APIError struct {
	StatusCode int
	Title      string
	Code       string // o:errorCode del primer detalle
	Detail     string
	Path       string
}

func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		return fmt.Sprintf("netsuite: HTTP %d [%s] %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("netsuite: HTTP %d %s", e.StatusCode, msg)
}

// Unwrap asocia el error al sentinel de dominio; el código tiene prioridad sobre el estado HTTP.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "NONEXISTENT_ID", "RCRD_DSNT_EXIST":
		return domain.ErrNotFound
	case "DUP_ENTITY", "DUP_RCRD", "UNIQUE_CUST_ID_REQD":
		return domain.ErrDuplicate
	case "RCRD_HAS_BEEN_CHANGED":
		return domain.ErrConflict
	case "CONCURRENCY_LIMIT_EXCEEDED", "SSS_REQUEST_LIMIT_EXCEEDED":
		return domain.ErrRateLimited
	case "INVALID_LOGIN", "INVALID_LOGIN_ATTEMPT", "INSUFFICIENT_PERMISSION":
		return domain.ErrUnauthorized
	}
	if strings.HasPrefix(e.Code, "INVALID_") || e.Code == "USER_ERROR" {
		return domain.ErrInvalidInput
	}
	return httpclient.StatusSentinel(e.StatusCode)
}

type errorBody struct {
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Details []struct {
		Detail string `json:"detail"`
		Code   string `json:"o:errorCode"`
		Path   string `json:"o:errorPath"`
	} `json:"o:errorDetails"`
}

// parseError arma el APIError; si el cuerpo no es JSON conserva el estado HTTP.
func parseError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Title: http.StatusText(status)}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Detail = strings.TrimSpace(string(body))
		if len(e.Detail) > 256 {
			e.Detail = e.Detail[:256] + "..."
		}
		return e
	}
	if eb.Title != "" {
		e.Title = eb.Title
	}
	if len(eb.Details) > 0 {
		d := eb.Details[0]
		e.Detail, e.Code, e.Path = d.Detail, d.Code, d.Path
	}
	return e
}
