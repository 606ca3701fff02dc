package oauth2

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/ChanSarun168/signon"
)

type FacebookOAuth2 struct {
	*BaseOAuth2

	// UserInfoURL is the Graph API endpoint the profile is fetched from.
	// Can be overridden for testing.
	UserInfoURL string
}

func NewFacebookOAuth2(clientId string, clientSecret string, callbackUrl string, handleProfile HandleProfileFunc) *FacebookOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL"))
	}

	out := FacebookOAuth2{
		BaseOAuth2:  NewBaseOAuth2(clientId, clientSecret, callbackUrl, handleProfile),
		UserInfoURL: "https://graph.facebook.com/me",
	}
	out.BaseOAuth2.oauthConfig.Endpoint = facebook.Endpoint
	out.BaseOAuth2.oauthConfig.Scopes = []string{
		"email", "public_profile",
	}

	out.mux.HandleFunc("/callback/", out.handleCallback)

	return &out
}

func (f *FacebookOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !checkState(w, r, "facebook") {
		return
	}

	code := r.FormValue("code")
	token, err := f.oauthConfig.Exchange(f.ExchangeContext(), code)
	if err != nil {
		slog.Info("Invalid code exchange", "err", err)
	} else {
		var profile *signon.ProviderProfile
		profile, err = f.fetchProfile(token)
		if err == nil {
			f.HandleProfile(profile, w, r)
		}
	}
	if err != nil {
		slog.Info("redirecting due to error ", "err", err)
		http.Redirect(w, r, f.AuthFailureUrl, http.StatusTemporaryRedirect)
	}
}

func (f *FacebookOAuth2) fetchProfile(token *oauth2.Token) (*signon.ProviderProfile, error) {
	log.Println("Getting User data from facebook....")
	url := fmt.Sprintf("%s?fields=id,name,email&access_token=%s", f.UserInfoURL, token.AccessToken)
	response, err := f.getHTTPClient().Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from facebook: %s", err.Error())
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api returned status %d", response.StatusCode)
	}
	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %s", err.Error())
	}

	id, _ := userInfo["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("facebook profile missing id")
	}
	email, _ := userInfo["email"].(string)
	name, _ := userInfo["name"].(string)
	return &signon.ProviderProfile{
		Provider:    "facebook",
		ExternalID:  id,
		Email:       email,
		DisplayName: name,
	}, nil
}
