package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	signon "github.com/ChanSarun168/signon"
	"github.com/ChanSarun168/signon/oauth2"
	oauth2lib "golang.org/x/oauth2"
)

// mockOAuthServer creates a mock OAuth provider server that handles:
// - /token endpoint for token exchange
// - /userinfo endpoint for user data retrieval
type mockOAuthServer struct {
	server           *httptest.Server
	tokenEndpoint    string
	userInfoEndpoint string

	// Configuration for responses
	tokenResponse    map[string]any
	userInfoResponse map[string]any
	tokenError       bool
	userInfoError    bool
}

func newMockOAuthServer() *mockOAuthServer {
	mock := &mockOAuthServer{
		tokenResponse: map[string]any{
			"access_token":  "mock_access_token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "mock_refresh_token",
		},
		userInfoResponse: map[string]any{
			"id":    "12345",
			"email": "testuser@example.com",
			"name":  "Test User",
		},
	}

	mux := http.NewServeMux()

	// Token endpoint
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.tokenResponse)
	})

	// User info endpoint
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if mock.userInfoError {
			http.Error(w, "user info failed", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userInfoResponse)
	})

	mock.server = httptest.NewServer(mux)
	mock.tokenEndpoint = mock.server.URL + "/token"
	mock.userInfoEndpoint = mock.server.URL + "/userinfo"

	return mock
}

func (m *mockOAuthServer) Close() {
	m.server.Close()
}

// TestOauthRedirector tests the OAuth redirect handler
func TestOauthRedirector(t *testing.T) {
	config := &oauth2lib.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scopes:       []string{"email", "profile"},
		Endpoint: oauth2lib.Endpoint{
			AuthURL:  "https://provider.example.com/auth",
			TokenURL: "https://provider.example.com/token",
		},
	}

	redirector := oauth2.OauthRedirector(config)

	t.Run("redirects to OAuth provider", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		if rr.Code != http.StatusFound {
			t.Errorf("Expected status %d, got %d", http.StatusFound, rr.Code)
		}

		location := rr.Header().Get("Location")
		if !strings.HasPrefix(location, "https://provider.example.com/auth") {
			t.Errorf("Expected redirect to OAuth provider, got: %s", location)
		}

		// Check that location contains required OAuth parameters
		parsedURL, err := url.Parse(location)
		if err != nil {
			t.Fatalf("Failed to parse redirect URL: %v", err)
		}
		query := parsedURL.Query()
		if query.Get("client_id") != "test-client-id" {
			t.Errorf("Expected client_id in URL")
		}
		if query.Get("redirect_uri") != "http://localhost:8080/callback" {
			t.Errorf("Expected redirect_uri in URL")
		}
		if query.Get("response_type") != "code" {
			t.Errorf("Expected response_type=code in URL")
		}
		if query.Get("state") == "" {
			t.Errorf("Expected state parameter in URL")
		}
	})

	t.Run("sets oauthstate cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		cookies := rr.Result().Cookies()
		var oauthStateCookie *http.Cookie
		for _, c := range cookies {
			if c.Name == "oauthstate" {
				oauthStateCookie = c
				break
			}
		}

		if oauthStateCookie == nil {
			t.Error("Expected oauthstate cookie to be set")
		} else if oauthStateCookie.Value == "" {
			t.Error("Expected oauthstate cookie to have a value")
		}
	})

	t.Run("sets callback URL cookie when provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?callbackURL=/dashboard", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		cookies := rr.Result().Cookies()
		var callbackCookie *http.Cookie
		for _, c := range cookies {
			if c.Name == "oauthCallbackURL" {
				callbackCookie = c
				break
			}
		}

		if callbackCookie == nil {
			t.Error("Expected oauthCallbackURL cookie to be set")
		} else if callbackCookie.Value != "/dashboard" {
			t.Errorf("Expected callback URL '/dashboard', got '%s'", callbackCookie.Value)
		}
	})

	t.Run("state in URL matches cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		// Get state from cookie
		cookies := rr.Result().Cookies()
		var cookieState string
		for _, c := range cookies {
			if c.Name == "oauthstate" {
				cookieState = c.Value
				break
			}
		}

		// Get state from redirect URL
		location := rr.Header().Get("Location")
		parsedURL, _ := url.Parse(location)
		urlState := parsedURL.Query().Get("state")

		if cookieState != urlState {
			t.Errorf("State mismatch: cookie=%s, url=%s", cookieState, urlState)
		}
	})
}

// TestGoogleOAuth2Callback tests the Google OAuth callback handler
func TestGoogleOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()

	// Track HandleProfile calls
	var handledProfile *signon.ProviderProfile
	var handledCalled bool

	googleAuth := oauth2.NewGoogleOAuth2(
		"test-client-id",
		"test-client-secret",
		"http://localhost:8080/callback",
		func(profile *signon.ProviderProfile, w http.ResponseWriter, r *http.Request) {
			handledCalled = true
			handledProfile = profile
			w.WriteHeader(http.StatusOK)
		},
	)

	// Override endpoints and client for testing
	googleAuth.UserInfoURL = mock.userInfoEndpoint
	googleAuth.SetHTTPClient(mock.server.Client())
	// Override the oauth config endpoint for token exchange
	googleAuth.BaseOAuth2.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.tokenEndpoint,
	})

	t.Run("rejects missing state cookie", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=test_state", nil)
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called without state cookie")
		}
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=wrong_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "correct_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "invalid oauth") {
			t.Errorf("Expected invalid oauth error, got: %s", rr.Body.String())
		}
		if handledCalled {
			t.Error("HandleProfile should not be called with mismatched state")
		}
	})

	t.Run("successful callback flow", func(t *testing.T) {
		handledCalled = false
		handledProfile = nil

		mock.userInfoResponse = map[string]any{
			"id":    "google123",
			"email": "user@gmail.com",
			"name":  "Google User",
		}

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=valid_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if !handledCalled {
			t.Fatal("HandleProfile should have been called")
		}
		if handledProfile.Provider != "google" {
			t.Errorf("Expected provider 'google', got '%s'", handledProfile.Provider)
		}
		if handledProfile.ExternalID != "google123" {
			t.Errorf("Expected external id 'google123', got '%s'", handledProfile.ExternalID)
		}
		if handledProfile.Email != "user@gmail.com" {
			t.Errorf("Expected email 'user@gmail.com', got '%s'", handledProfile.Email)
		}
	})

	t.Run("redirects when profile has no id", func(t *testing.T) {
		handledCalled = false
		mock.userInfoResponse = map[string]any{"email": "user@gmail.com"}
		defer func() {
			mock.userInfoResponse = map[string]any{"id": "12345", "email": "testuser@example.com"}
		}()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=valid_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect status, got %d", rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called without an external id")
		}
	})

	t.Run("redirects on token exchange failure", func(t *testing.T) {
		handledCalled = false
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=bad_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect status, got %d", rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called on token exchange failure")
		}
	})

	t.Run("redirects on user info failure", func(t *testing.T) {
		handledCalled = false
		mock.userInfoError = true
		defer func() { mock.userInfoError = false }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=valid_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		googleAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect status, got %d", rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called on user info failure")
		}
	})
}

// TestFacebookOAuth2Callback tests the Facebook OAuth callback handler
func TestFacebookOAuth2Callback(t *testing.T) {
	mock := newMockOAuthServer()
	defer mock.Close()

	// Track HandleProfile calls
	var handledProfile *signon.ProviderProfile
	var handledCalled bool

	facebookAuth := oauth2.NewFacebookOAuth2(
		"test-client-id",
		"test-client-secret",
		"http://localhost:8080/callback",
		func(profile *signon.ProviderProfile, w http.ResponseWriter, r *http.Request) {
			handledCalled = true
			handledProfile = profile
			w.WriteHeader(http.StatusOK)
		},
	)

	// Override endpoints and client for testing
	facebookAuth.UserInfoURL = mock.userInfoEndpoint
	facebookAuth.SetHTTPClient(mock.server.Client())
	// Override the oauth config endpoint for token exchange
	facebookAuth.BaseOAuth2.SetOAuthEndpoint(oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.tokenEndpoint,
	})

	t.Run("rejects missing state cookie", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=test_state", nil)
		rr := httptest.NewRecorder()

		facebookAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called without state cookie")
		}
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		handledCalled = false

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=test_code&state=wrong_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "correct_state"})
		rr := httptest.NewRecorder()

		facebookAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "invalid oauth") {
			t.Errorf("Expected invalid oauth error, got: %s", rr.Body.String())
		}
		if handledCalled {
			t.Error("HandleProfile should not be called with mismatched state")
		}
	})

	t.Run("successful callback flow", func(t *testing.T) {
		handledCalled = false
		handledProfile = nil

		mock.userInfoResponse = map[string]any{
			"id":    "fb456",
			"email": "user@facebook.com",
			"name":  "Facebook User",
		}

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=valid_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		facebookAuth.Handler().ServeHTTP(rr, req)

		if !handledCalled {
			t.Fatal("HandleProfile should have been called")
		}
		if handledProfile.Provider != "facebook" {
			t.Errorf("Expected provider 'facebook', got '%s'", handledProfile.Provider)
		}
		if handledProfile.ExternalID != "fb456" {
			t.Errorf("Expected external id 'fb456', got '%s'", handledProfile.ExternalID)
		}
		if handledProfile.DisplayName != "Facebook User" {
			t.Errorf("Expected display name 'Facebook User', got '%s'", handledProfile.DisplayName)
		}
	})

	t.Run("redirects on token exchange failure", func(t *testing.T) {
		handledCalled = false
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=bad_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		facebookAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect status, got %d", rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called on token exchange failure")
		}
	})

	t.Run("redirects on user info failure", func(t *testing.T) {
		handledCalled = false
		mock.userInfoError = true
		defer func() { mock.userInfoError = false }()

		req := httptest.NewRequest(http.MethodGet, "/callback/?code=valid_code&state=valid_state", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()

		facebookAuth.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusTemporaryRedirect {
			t.Errorf("Expected redirect status, got %d", rr.Code)
		}
		if handledCalled {
			t.Error("HandleProfile should not be called on user info failure")
		}
	})
}

// TestOAuthStateGeneration tests that OAuth state is properly generated and validated
func TestOAuthStateGeneration(t *testing.T) {
	config := &oauth2lib.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/callback",
		Scopes:       []string{"email"},
		Endpoint: oauth2lib.Endpoint{
			AuthURL:  "https://provider.example.com/auth",
			TokenURL: "https://provider.example.com/token",
		},
	}

	redirector := oauth2.OauthRedirector(config)

	t.Run("generates unique state for each request", func(t *testing.T) {
		states := make(map[string]bool)

		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rr := httptest.NewRecorder()

			redirector(rr, req)

			cookies := rr.Result().Cookies()
			for _, c := range cookies {
				if c.Name == "oauthstate" {
					if states[c.Value] {
						t.Errorf("Duplicate state generated: %s", c.Value)
					}
					states[c.Value] = true
					break
				}
			}
		}

		if len(states) != 10 {
			t.Errorf("Expected 10 unique states, got %d", len(states))
		}
	})

	t.Run("state cookie has appropriate expiration", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		redirector(rr, req)

		cookies := rr.Result().Cookies()
		for _, c := range cookies {
			if c.Name == "oauthstate" {
				// Cookie should expire in about 30 days
				expectedExpiry := time.Now().Add(30 * 24 * time.Hour)
				if c.Expires.Before(expectedExpiry.Add(-1*time.Hour)) || c.Expires.After(expectedExpiry.Add(1*time.Hour)) {
					t.Errorf("Cookie expiry not within expected range: %v", c.Expires)
				}
				break
			}
		}
	})
}

// TestOAuthEndpointConfiguration tests that OAuth endpoints can be configured
func TestOAuthEndpointConfiguration(t *testing.T) {
	t.Run("Google uses default endpoints", func(t *testing.T) {
		googleAuth := oauth2.NewGoogleOAuth2(
			"test-client-id",
			"test-client-secret",
			"http://localhost:8080/callback",
			nil,
		)

		// Default Google UserInfoURL should be set
		expectedURL := "https://www.googleapis.com/oauth2/v2/userinfo"
		if googleAuth.UserInfoURL != expectedURL {
			t.Errorf("Expected default UserInfoURL '%s', got '%s'", expectedURL, googleAuth.UserInfoURL)
		}
	})

	t.Run("Facebook uses default endpoints", func(t *testing.T) {
		facebookAuth := oauth2.NewFacebookOAuth2(
			"test-client-id",
			"test-client-secret",
			"http://localhost:8080/callback",
			nil,
		)

		// Default Facebook UserInfoURL should be set
		expectedURL := "https://graph.facebook.com/me"
		if facebookAuth.UserInfoURL != expectedURL {
			t.Errorf("Expected default UserInfoURL '%s', got '%s'", expectedURL, facebookAuth.UserInfoURL)
		}
	})

	t.Run("UserInfoURL can be overridden", func(t *testing.T) {
		googleAuth := oauth2.NewGoogleOAuth2(
			"test-client-id",
			"test-client-secret",
			"http://localhost:8080/callback",
			nil,
		)

		customURL := "http://mock.example.com/userinfo"
		googleAuth.UserInfoURL = customURL

		if googleAuth.UserInfoURL != customURL {
			t.Errorf("Expected UserInfoURL '%s', got '%s'", customURL, googleAuth.UserInfoURL)
		}
	})
}

// TestEnvironmentVariableDefaults tests that OAuth config falls back to environment variables
func TestEnvironmentVariableDefaults(t *testing.T) {
	t.Run("Google OAuth reads from environment when set", func(t *testing.T) {
		t.Setenv("OAUTH2_GOOGLE_CLIENT_ID", "env-client-id")
		t.Setenv("OAUTH2_GOOGLE_CLIENT_SECRET", "env-secret")
		t.Setenv("OAUTH2_GOOGLE_CALLBACK_URL", "http://env-callback.com")

		googleAuth := oauth2.NewGoogleOAuth2("", "", "", nil)

		if googleAuth.ClientId != "env-client-id" {
			t.Errorf("Expected env ClientId, got '%s'", googleAuth.ClientId)
		}
		if googleAuth.CallbackURL != "http://env-callback.com" {
			t.Errorf("Expected env CallbackURL, got '%s'", googleAuth.CallbackURL)
		}
	})

	t.Run("Facebook OAuth reads from environment when set", func(t *testing.T) {
		t.Setenv("OAUTH2_FACEBOOK_CLIENT_ID", "env-fb-id")
		t.Setenv("OAUTH2_FACEBOOK_CLIENT_SECRET", "env-fb-secret")

		facebookAuth := oauth2.NewFacebookOAuth2("", "", "", nil)

		if facebookAuth.ClientId != "env-fb-id" {
			t.Errorf("Expected env ClientId, got '%s'", facebookAuth.ClientId)
		}
	})

	t.Run("explicit values override environment", func(t *testing.T) {
		t.Setenv("OAUTH2_GOOGLE_CLIENT_ID", "env-client-id")

		googleAuth := oauth2.NewGoogleOAuth2(
			"explicit-client-id",
			"explicit-secret",
			"http://explicit-callback.com",
			nil,
		)

		if googleAuth.ClientId != "explicit-client-id" {
			t.Errorf("Expected explicit ClientId, got '%s'", googleAuth.ClientId)
		}
		if googleAuth.ClientSecret != "explicit-secret" {
			t.Errorf("Expected explicit ClientSecret, got '%s'", googleAuth.ClientSecret)
		}
		if googleAuth.CallbackURL != "http://explicit-callback.com" {
			t.Errorf("Expected explicit CallbackURL, got '%s'", googleAuth.CallbackURL)
		}
	})
}
