package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/relayforge/mcp-auth/internal/auth/service"
	"github.com/relayforge/mcp-auth/pkg/httpx"
	"github.com/relayforge/mcp-auth/pkg/slogx"
)

// RegisterHandler serves POST /oauth/register, RFC 7591 dynamic client
// registration. Registration is open; abuse is kept in check by rate
// limiting at the router.
type RegisterHandler struct {
	ClientService *service.ClientService
}

type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	ClientName              string   `json:"client_name"`
	ClientURI               string   `json:"client_uri"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		NewOAuth2Error(http.StatusBadRequest, "invalid_request", "Content-Type must be application/json.").WriteError(w)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrInvalidClientMetadata.WriteError(w)
		return
	}

	client, secret, err := h.ClientService.Register(ctx, service.RegisterClientRequest{
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		Scope:                   req.Scope,
		Name:                    req.ClientName,
		URI:                     req.ClientURI,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidClientMetadata) {
			NewOAuth2Error(http.StatusBadRequest, "invalid_client_metadata", err.Error()).WriteError(w)
			return
		}
		log.Error("client registration failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	// Echo the accepted auth method. The token endpoint takes basic and
	// post interchangeably, so both requests are honored as-is; anything
	// else settles on basic.
	authMethod := req.TokenEndpointAuthMethod
	switch {
	case secret == "":
		authMethod = "none"
	case authMethod != "client_secret_basic" && authMethod != "client_secret_post":
		authMethod = "client_secret_basic"
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, RegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   client.Scope,
		ClientName:              client.Name,
		ClientURI:               client.URI,
		TokenEndpointAuthMethod: authMethod,
	})
}
