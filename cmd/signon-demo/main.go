// Command signon-demo runs a small host app exercising the full auth
// surface: local signup/login with email verification plus Google and
// Facebook sign-in, over the file-based stores.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"

	"github.com/ChanSarun168/signon"
	signoauth2 "github.com/ChanSarun168/signon/oauth2"
	"github.com/ChanSarun168/signon/stores"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment as-is")
	}

	addr := getenv("SIGNON_ADDR", ":5000")
	baseURL := getenv("SIGNON_BASE_URL", "http://localhost:5000")
	storagePath := getenv("SIGNON_STORAGE_PATH", "./signon-data")

	users := stores.NewFSUserStore(storagePath)
	tokens := stores.NewFSTokenStore(storagePath)

	issuer, err := signon.NewIssuer(os.Getenv("SIGNON_JWT_SECRET_KEY"), "signon-demo", time.Hour)
	if err != nil {
		log.Fatal(err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour

	auth := signon.New("SignonDemo", users, issuer)
	auth.Session = sessionManager
	auth.Verifier = &signon.Verifier{
		Users:       users,
		Tokens:      tokens,
		Issuer:      issuer,
		EmailSender: &signon.ConsoleEmailSender{},
		BaseURL:     baseURL,
		Window:      signon.DefaultVerificationWindow,
	}
	auth.AddLocal(&signon.LocalAuth{})

	google := signoauth2.NewGoogleOAuth2("", "", "", auth.SaveProviderUserAndRedirect)
	auth.AddProvider("/google", google.Handler())

	facebook := signoauth2.NewFacebookOAuth2("", "", "", auth.SaveProviderUserAndRedirect)
	auth.AddProvider("/facebook", facebook.Handler())

	mux := http.NewServeMux()
	mux.Handle("/auth/", http.StripPrefix("/auth", auth.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/auth/google">Sign in with google</a><br>
<a href="/auth/facebook">Sign in with facebook</a><br>`)
	})

	log.Println("signon-demo listening on ", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
