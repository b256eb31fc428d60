package http

import (
	"encoding/json"
	"net/http"
)

// OAuth2Error is an RFC 6749 section 5.2 error response paired with the
// HTTP status it is served with.
type OAuth2Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string { return e.Code + ": " + e.Description }

// WriteError renders the error as a JSON body with no-store caching, per
// the token endpoint requirements.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

// NewOAuth2Error builds a one-off error response.
func NewOAuth2Error(status int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: status, Code: code, Description: description}
}

var (
	ErrInvalidRequest = NewOAuth2Error(http.StatusBadRequest,
		"invalid_request", "The request is missing a required parameter or is otherwise malformed.")
	ErrInvalidClient = NewOAuth2Error(http.StatusUnauthorized,
		"invalid_client", "Client authentication failed.")
	ErrInvalidGrant = NewOAuth2Error(http.StatusBadRequest,
		"invalid_grant", "The provided grant is invalid, expired, revoked, or was issued to another client.")
	ErrUnsupportedGrantType = NewOAuth2Error(http.StatusBadRequest,
		"unsupported_grant_type", "The authorization grant type is not supported.")
	ErrUnsupportedResponseType = NewOAuth2Error(http.StatusBadRequest,
		"unsupported_response_type", "Only the authorization code response type is supported.")
	ErrInvalidScope = NewOAuth2Error(http.StatusBadRequest,
		"invalid_scope", "The requested scope exceeds the scope granted by the resource owner.")
	ErrAccessDenied = NewOAuth2Error(http.StatusForbidden,
		"access_denied", "The resource owner denied the request.")
	ErrInvalidClientMetadata = NewOAuth2Error(http.StatusBadRequest,
		"invalid_client_metadata", "The client metadata is invalid.")
	ErrInvalidToken = NewOAuth2Error(http.StatusUnauthorized,
		"invalid_token", "The access token is invalid, expired, or not valid for this resource.")
	ErrServerError = NewOAuth2Error(http.StatusInternalServerError,
		"server_error", "The authorization server encountered an unexpected condition.")
	ErrInvalidContentType = NewOAuth2Error(http.StatusBadRequest,
		"invalid_request", "Content-Type must be application/x-www-form-urlencoded.")
	ErrInvalidFormBody = NewOAuth2Error(http.StatusBadRequest,
		"invalid_request", "The form body could not be parsed.")
)
