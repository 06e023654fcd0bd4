package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := errorBody(resp)

	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: %s", ErrRejected, ErrUnauthorized, body)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s", ErrRejected, ErrNotFound, body)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %w: http %d: %s", ErrTransient, ErrServer, resp.StatusCode(), body)
	default:
		if body == "" {
			body = http.StatusText(resp.StatusCode())
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w: http %d: %s", ErrRejected, ErrServer, resp.StatusCode(), body)
		}
		return fmt.Errorf("%w: http %d: %s", ErrRejected, resp.StatusCode(), body)
	}
}

// errorBody extracts the failure message from a non-2xx response. The CRUD
// collaborator answers with {"error": "..."} bodies; plain text is kept
// verbatim as a fallback.
func errorBody(resp *resty.Response) string {
	raw := strings.TrimSpace(string(resp.Body()))
	if raw == "" {
		return ""
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}

	return raw
}
