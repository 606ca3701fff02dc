package signon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
)

// SignOn wires the reconciler, verifier and token issuer into an HTTP
// surface: routes, session cookies and the logged-in-user contract consumed
// by the middleware.
type SignOn struct {
	router     *mux.Router
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name that can be used as a prefix for all required vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	Users      UserStore
	Reconciler *Reconciler
	Verifier   *Verifier
	Issuer     *Issuer

	// All the domains where the auth token cookies will be set on a login success or logout
	CookieDomains []string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

// New creates a SignOn instance for the given app name. The issuer must be
// constructed by the caller so a missing signing secret fails at startup.
func New(appName string, users UserStore, issuer *Issuer) *SignOn {
	out := &SignOn{
		AppName: appName,
		Users:   users,
		Issuer:  issuer,
	}
	return out.EnsureDefaults()
}

func (a *SignOn) EnsureDefaults() *SignOn {
	if a.AppName == "" {
		a.AppName = "Signon"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.Reconciler == nil && a.Users != nil {
		a.Reconciler = NewReconciler(a.Users)
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.VerifyToken == nil && a.Issuer != nil {
		a.Middleware.VerifyToken = a.Issuer.VerifySession
	}
	if a.Middleware.SessionGetter == nil && a.Session != nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	return a
}

// Router returns the auth route tree. Callers mount it under /auth (or
// anywhere else) and wrap the result with Session.LoadAndSave.
func (a *SignOn) Router() *mux.Router {
	a.EnsureDefaults()
	if a.router == nil {
		a.router = mux.NewRouter()
		a.router.HandleFunc("/logout", a.onLogout).Methods(http.MethodGet, http.MethodPost)
		a.router.Handle("/me", a.Middleware.EnsureUser(http.HandlerFunc(a.onMe))).Methods(http.MethodGet)
	}
	return a.router
}

// Handler wraps the router with session loading
func (a *SignOn) Handler() http.Handler {
	router := a.Router()
	if a.Session != nil {
		return a.Session.LoadAndSave(router)
	}
	return router
}

// AddLocal mounts the local auth handlers on the router
func (a *SignOn) AddLocal(local *LocalAuth) *SignOn {
	if local.Reconciler == nil {
		local.Reconciler = a.Reconciler
	}
	if local.Verifier == nil {
		local.Verifier = a.Verifier
	}
	if local.Users == nil {
		local.Users = a.Users
	}
	if local.HandleUser == nil {
		local.HandleUser = a.SaveUserAndRespond
	}
	r := a.Router()
	r.Handle("/login", local).Methods(http.MethodPost)
	r.HandleFunc("/signup", local.HandleSignup).Methods(http.MethodPost)
	r.HandleFunc("/verify", local.HandleVerifyEmail).Methods(http.MethodGet)
	r.HandleFunc("/resend", local.HandleResendVerification).Methods(http.MethodPost)
	return a
}

// AddProvider mounts an OAuth provider handler under the given prefix,
// e.g. AddProvider("/google", googleAuth.Handler()).
func (a *SignOn) AddProvider(prefix string, handler http.Handler) *SignOn {
	prefix = strings.TrimSuffix(prefix, "/")
	log.Println("Adding auth provider at prefix: ", prefix)
	r := a.Router()
	r.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, handler))
	r.Handle(prefix, http.StripPrefix(prefix, handler))
	return a
}

func (a *SignOn) onLogout(w http.ResponseWriter, r *http.Request) {
	log.Println("Logging out user...")
	a.setLoggedInUser(nil, w, r)
	toUrl := r.URL.Query().Get("to")
	if toUrl == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl, http.StatusFound)
	}
}

// onMe returns the profile of the logged in user
func (a *SignOn) onMe(w http.ResponseWriter, r *http.Request) {
	userID := a.Middleware.GetLoggedInUserId(r)
	user, err := a.Users.GetUserByID(userID)
	if err != nil {
		http.Error(w, `{"error": "User not found"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// SaveUserAndRespond is the HandleUserFunc for local flows: it sets the
// session cookies and returns the session token as JSON.
func (a *SignOn) SaveUserAndRespond(authtype, provider string, user *User, w http.ResponseWriter, r *http.Request) {
	tokenString := a.setLoggedInUser(user, w, r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Login successfully, welcome to our app.",
		"token":   tokenString,
	})
}

/**
 * Called by the oauth callback handlers with the provider profile after a
 * successful code exchange.
 *
 * Here is our opportunity to:
 * 	1. Resolve (or create) the user this external identity belongs to
 *	2. Set the right session cookies and redirect back where we came from
 */
func (a *SignOn) SaveProviderUserAndRedirect(profile *ProviderProfile, w http.ResponseWriter, r *http.Request) {
	user, err := a.Reconciler.ResolveProvider(profile)
	if err != nil {
		if errors.Is(err, ErrCredentialConflict) {
			http.Error(w, `{"error": "This email is already registered. Sign in with your password instead."}`, http.StatusForbidden)
			return
		}
		log.Println("error resolving provider user: ", err)
		http.Error(w, `{"error": "Authentication failed. Please try again."}`, http.StatusUnauthorized)
		return
	}

	a.setLoggedInUser(user, w, r)

	// Auth done - go back to where we need to be
	callbackURL := "/"
	callbackURLCookie, _ := r.Cookie("oauthCallbackURL")
	if callbackURLCookie != nil {
		callbackURL = callbackURLCookie.Value
	}
	if callbackURL == "" {
		callbackURL = "/"
	}
	u, _ := url.Parse(callbackURL)
	if u != nil && u.Scheme == "" {
		callbackURL = os.Getenv("OAUTH2_BASE_URL") + callbackURL
	}
	log.Println("Redirecting to CallbackURL: ", callbackURL)
	// then delete it too so it wont be used for subsequent redirects
	http.SetCookie(w, &http.Cookie{
		Name:   "oauthCallbackURL",
		Value:  "",
		Path:   "/",
		MaxAge: -1, Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// Generic helper method to set the auth token and logged in user ID on a bunch of cookie domains we care about.
// This can also be used to "unset/logout" the logged in user.
func (a *SignOn) setLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) string {
	a.EnsureDefaults()
	domains := a.CookieDomains
	if slices.Index(a.CookieDomains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	if user == nil {
		// clear the session and cookie values on every domain
		log.Println("Logging out user")
		if a.Session != nil {
			if err := a.Session.Clear(r.Context()); err != nil {
				slog.Warn("error clearing session ", "err", err)
			}
		}
		for _, cookieDomain := range domains {
			http.SetCookie(w, &http.Cookie{
				Name:   "oauthstate",
				Value:  "",
				MaxAge: -1, Expires: time.Now(),
				Domain: cookieDomain,
				Path:   "/",
			})
			http.SetCookie(w, &http.Cookie{
				Name:    "loggedInUserId",
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
			http.SetCookie(w, &http.Cookie{
				Name:    a.AuthTokenSessionVar,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
		return ""
	}

	tokenString, err := a.Issuer.MintSession(user.ID)
	if err != nil {
		slog.Info("error signing token", "err", err)
	}
	if a.Session != nil {
		a.Session.Put(r.Context(), "loggedInUserId", user.ID)
		a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
	}
	for _, cookieDomain := range domains {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			Value:  "",
			MaxAge: -1, Expires: time.Now(),
			Domain: cookieDomain,
			Path:   "/",
		})
		http.SetCookie(w, &http.Cookie{
			Name:    "loggedInUserId",
			Value:   user.ID,
			Domain:  cookieDomain,
			Path:    "/",
			Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
		})
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Value:   tokenString,
			Domain:  cookieDomain,
			Path:    "/",
			Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)), MaxAge: a.SessionTimeoutInSeconds,
		})
	}
	return tokenString
}
