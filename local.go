package signon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HandleUserFunc is called after a successful authentication with the
// resolved user. Typically SignOn.SaveUserAndRespond.
type HandleUserFunc func(authtype string, provider string, user *User, w http.ResponseWriter, r *http.Request)

// LocalAuth serves email/password signup, login and email verification.
type LocalAuth struct {
	// Resolves login attempts
	Reconciler *Reconciler

	// Owns the verification token lifecycle
	Verifier *Verifier

	Users UserStore

	// Validates credentials during signup. Defaults to DefaultSignupValidator.
	ValidateSignup SignupValidator

	// Provider name (defaults to "local")
	Provider string

	// Form field names
	EmailField    string
	PasswordField string
	UsernameField string

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler
}

// ServeHTTP handles login requests
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Reconciler == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	email, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), "email"), w, r)
		return
	}

	user, err := a.Reconciler.ResolveLocal(email, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidCredential):
			// same message either way so login never reveals whether the
			// email is registered
			a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid email or password", "password"), w, r)
		case errors.Is(err, ErrNotVerified):
			a.handleLoginError(NewAuthError(ErrCodeNotVerified, "Email hasn't been verified yet", "email"), w, r)
		default:
			log.Println("error resolving user: ", err)
			http.Error(w, `{"error": "An error occurred while logging in"}`, http.StatusInternalServerError)
		}
		return
	}

	a.HandleUser("local", a.getProvider(), user, w, r)
}

// HandleSignup processes user registration
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Users == nil || a.Verifier == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	creds, parseErr := a.parseSignupForm(r)
	if parseErr != nil {
		a.handleSignupError(parseErr, w, r)
		return
	}

	validator := a.ValidateSignup
	if validator == nil {
		validator = DefaultSignupValidator
	}
	if authErr := validator(creds); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	if _, err := a.Users.FindByEmail(creds.Email); err == nil {
		a.handleSignupError(NewAuthError(ErrCodeEmailExists, "Email already in use, please use another email", "email"), w, r)
		return
	} else if !errors.Is(err, ErrNotFound) {
		log.Println("error checking email: ", err)
		http.Error(w, `{"error": "Failed to create user"}`, http.StatusInternalServerError)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error": "Failed to create user"}`, http.StatusInternalServerError)
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     creds.Username,
		Email:        creds.Email,
		PasswordHash: string(passwordHash),
	}
	user, err = a.Users.CreateUser(user)
	if err != nil {
		// only a lost race on the email is the caller's fault; a backend
		// fault must surface as a server error, never as email-exists
		if errors.Is(err, ErrEmailExists) {
			a.handleSignupError(NewAuthError(ErrCodeEmailExists, "Email already in use, please use another email", "email"), w, r)
			return
		}
		log.Println("error creating user: ", err)
		http.Error(w, `{"error": "Failed to create user"}`, http.StatusInternalServerError)
		return
	}
	log.Printf("Created local user %s for %s", user.ID, user.Email)

	// Issue the verification token. A delivery failure keeps the token row
	// and the account; the user can still come back through the resend path.
	if _, err := a.Verifier.Issue(user); err != nil && !errors.Is(err, ErrDeliveryFailed) {
		log.Println("error issuing verification token: ", err)
		http.Error(w, `{"error": "Failed to create user"}`, http.StatusInternalServerError)
		return
	} else if err != nil {
		log.Println("verification email not delivered: ", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "User created. Please check your email to verify your account.",
		"user_id": user.ID,
	})
}

// HandleVerifyEmail handles email verification via token
func (a *LocalAuth) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if a.Verifier == nil {
		http.Error(w, `{"error": "Email verification not configured"}`, http.StatusInternalServerError)
		return
	}

	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		http.Error(w, `{"error": "Token required"}`, http.StatusBadRequest)
		return
	}

	result, err := a.Verifier.Redeem(tokenValue)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			// invalid and stale-after-use look identical to the caller
			http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusBadRequest)
			return
		}
		log.Println("error redeeming token: ", err)
		http.Error(w, `{"error": "An error occurred while verifying"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !result.Verified {
		json.NewEncoder(w).Encode(map[string]any{
			"verified": false,
			"message":  "Token expired. A new verification email has been sent.",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"verified": true,
		"message":  "User verified successfully",
		"token":    result.SessionToken,
	})
}

// HandleResendVerification re-issues a verification token for an unverified
// account. Always responds with success so the endpoint cannot be used to
// probe which emails are registered.
func (a *LocalAuth) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	if a.Verifier == nil || a.Users == nil {
		http.Error(w, `{"error": "Email verification not configured"}`, http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, `{"error": "Invalid form data"}`, http.StatusBadRequest)
		return
	}
	email := r.FormValue(a.getEmailField())
	if email == "" {
		http.Error(w, `{"error": "Email required"}`, http.StatusBadRequest)
		return
	}

	if user, err := a.Users.FindByEmail(email); err == nil {
		if _, err := a.Verifier.Resend(user); err != nil {
			log.Printf("Error resending verification for %s: %v", user.ID, err)
		}
	} else if !errors.Is(err, ErrNotFound) {
		log.Println("error finding user for resend: ", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "If that email needs verification, a new link has been sent",
	})
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (email, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if email == "" || password == "" {
		return "", "", fmt.Errorf("email and password required")
	}
	return email, password, nil
}

func (a *LocalAuth) parseSignupForm(r *http.Request) (*Credentials, *AuthError) {
	contentType := r.Header.Get("Content-Type")
	emailField := a.getEmailField()
	passwordField := a.getPasswordField()
	usernameField := a.getUsernameField()

	var username, email, password string

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError("parse_error", "Error parsing form", "")
		}
		username = r.FormValue(usernameField)
		email = r.FormValue(emailField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, NewAuthError("parse_error", "Invalid post body", "")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if e, ok := data[emailField].(string); ok {
			email = e
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	return &Credentials{Username: username, Email: email, Password: password}, nil
}

func (a *LocalAuth) getProvider() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "local"
}

func (a *LocalAuth) getEmailField() string {
	if a.EmailField != "" {
		return a.EmailField
	}
	return "email"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	// 400 for malformed input, 401 for anything credential-shaped
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField || err.Code == ErrCodeInvalidEmail {
		statusCode = http.StatusBadRequest
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}
