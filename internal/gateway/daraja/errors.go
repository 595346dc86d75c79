package daraja

import "fmt"

// AuthError indicates the platform could not obtain a gateway access token
type AuthError struct {
	StatusCode int
	Body       string
}

func (e AuthError) Error() string {
	return fmt.Sprintf("gateway token acquisition failed (status %d): %s", e.StatusCode, e.Body)
}

// GatewayError indicates a non-2xx or malformed response from the gateway.
// The raw body is carried for diagnostics and never parsed further.
type GatewayError struct {
	StatusCode int
	Code       string
	RawBody    string
}

func (e GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway request failed (status %d, code %s): %s", e.StatusCode, e.Code, e.RawBody)
	}
	return fmt.Sprintf("gateway request failed (status %d): %s", e.StatusCode, e.RawBody)
}
