// Package oauth2 implements the provider side of "sign in with ..." flows:
// state-cookie redirect out, code exchange back, profile fetch, and handoff
// of the normalized profile to the reconciler.
package oauth2

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ChanSarun168/signon"
)

// HandleProfileFunc receives the normalized provider profile after a
// successful code exchange. Typically SignOn.SaveProviderUserAndRedirect.
type HandleProfileFunc func(profile *signon.ProviderProfile, w http.ResponseWriter, r *http.Request)

// BaseOAuth2 holds the pieces common to all providers
type BaseOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// HandleProfile is invoked with the provider profile on success
	HandleProfile HandleProfileFunc

	// AuthFailureUrl is where failed callbacks redirect to
	AuthFailureUrl string

	oauthConfig oauth2.Config
	mux         *http.ServeMux
	httpClient  *http.Client
}

func NewBaseOAuth2(clientId string, clientSecret string, callbackUrl string, handleProfile HandleProfileFunc) *BaseOAuth2 {
	out := &BaseOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleProfile:  handleProfile,
		AuthFailureUrl: "/auth/failure",
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
		},
	}
	out.mux.HandleFunc("/", OauthRedirector(&out.oauthConfig))
	return out
}

// Handler returns the provider's route tree: "/" starts the flow,
// "/callback/" finishes it.
func (b *BaseOAuth2) Handler() http.Handler {
	return b.mux
}

// SetOAuthEndpoint overrides the provider endpoint. Used in tests to point
// the exchange at a mock server.
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// SetHTTPClient overrides the client used for profile fetches and the code
// exchange. Used in tests.
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return http.DefaultClient
}

// ExchangeContext returns the context for the token exchange, carrying the
// injected HTTP client if one was set.
func (b *BaseOAuth2) ExchangeContext() context.Context {
	ctx := context.Background()
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	return ctx
}
