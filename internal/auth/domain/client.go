package domain

// Client is the registered-client metadata resolved through a
// ClientDirectory. ID is the registration id referenced by
// Authorization.RegisteredClientID; ClientID is the public OAuth2
// client_id reported by introspection.
type Client struct {
	ID       string
	ClientID string
	Name     string
}
