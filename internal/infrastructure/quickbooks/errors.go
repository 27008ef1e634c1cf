package quickbooks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jhoicas/integraciones-api/internal/domain"
)

// Códigos de error de QuickBooks con significado propio.
const (
	codeObjectNotFound = "610"
	codeStaleObject    = "5010"
	codeDuplicateName  = "6240"
	codeThrottle       = "003001"
)

// APIError Fault devuelto por la API v3.
type APIError struct {
	StatusCode int
	Type       string // ValidationFault, AuthenticationFault, SystemFault...
	Code       string
	Message    string
	Detail     string
	Element    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Detail != "" && e.Detail != e.Message {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("quickbooks: %s [%s] %s", e.Type, e.Code, msg)
}

// Unwrap asocia el Fault al error de dominio.
func (e *APIError) Unwrap() error {
	t := strings.ToUpper(e.Type)
	switch {
	case strings.Contains(t, "AUTH") || e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case e.Code == codeThrottle || e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.Code == codeStaleObject:
		return domain.ErrConflict
	case e.Code == codeObjectNotFound:
		return domain.ErrNotFound
	case e.Code == codeDuplicateName:
		return domain.ErrDuplicate
	case t == "VALIDATIONFAULT":
		return domain.ErrInvalidInput
	default:
		return domain.ErrUpstream
	}
}

type faultBody struct {
	Fault *struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
			Element string `json:"element"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

// parseFault devuelve el primer error del Fault, o nil si el cuerpo no trae uno.
func parseFault(status int, body []byte) *APIError {
	var fb faultBody
	if err := json.Unmarshal(body, &fb); err != nil || fb.Fault == nil {
		return nil
	}
	e := &APIError{StatusCode: status, Type: fb.Fault.Type}
	if len(fb.Fault.Error) > 0 {
		first := fb.Fault.Error[0]
		e.Code, e.Message, e.Detail, e.Element = first.Code, first.Message, first.Detail, first.Element
	}
	return e
}
