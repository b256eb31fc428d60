package service

import "context"

// UserData carries the per-user claims enrichment embedded into access
// tokens for downstream services.
type UserData struct {
	Email        string
	APIKeyID     string
	APIKeySecret string
}

// UserDataProvider resolves enrichment data for a user at token-issuance
// time. Implementations typically call the host application's user store;
// orgID is empty when the grant carries no organization. Lookup failures
// must not block issuance; return an error only for hard faults, and the
// caller falls back to FallbackUserData.
type UserDataProvider interface {
	UserData(ctx context.Context, userID, orgID string) (UserData, error)
}

// UserDataProviderFunc adapts a function to the UserDataProvider interface.
type UserDataProviderFunc func(ctx context.Context, userID, orgID string) (UserData, error)

func (f UserDataProviderFunc) UserData(ctx context.Context, userID, orgID string) (UserData, error) {
	return f(ctx, userID, orgID)
}

// FallbackEmail is embedded when no provider is configured or the lookup
// fails, keeping the email claim present for consumers that expect it.
const FallbackEmail = "unknown@example.com"

// FallbackUserData is what token issuance uses when no real user data is
// available.
func FallbackUserData() UserData {
	return UserData{Email: FallbackEmail}
}
