package farhadmarket

// Auth produces the authentication headers required by the FarhadMarket
// REST API. The core never constructs or stores credentials itself; it only
// holds this capability.
type Auth struct {
	apiKey    string
	secretKey string
}

// NewAuth creates a new Auth instance
func NewAuth(apiKey, secretKey string) *Auth {
	return &Auth{
		apiKey:    apiKey,
		secretKey: secretKey,
	}
}

// Headers returns the header set for an authenticated request.
func (a *Auth) Headers() map[string]string {
	return map[string]string{
		"X-API-KEY":    a.apiKey,
		"X-API-SECRET": a.secretKey,
		"Content-Type": "application/x-www-form-urlencoded",
	}
}
