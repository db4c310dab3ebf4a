package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"faturas/internal/cli"
	"faturas/internal/log"
	"faturas/internal/sources/google"
)

// oauth-init runs the browser consent flow once and saves the token the
// sheets backend reads from GOOGLE_OAUTH_TOKEN_FILE.
func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentSheets, os.Stderr)

	cfg, err := google.OAuthConfigFromEnv()
	if err != nil {
		logger.Error("OAuth client not configured", log.FieldError, err.Error())
		os.Exit(1)
	}

	// Start local server for redirect_uri http://localhost:8085/callback
	// Update the OAuth client to include this URI in authorized redirect URIs.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + redirectPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			logger.Error("Token exchange failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		outFile := google.TokenFile()
		if err := google.SaveToken(outFile, tok); err != nil {
			logger.Error("Failed to save token", log.FieldError, err.Error())
			os.Exit(1)
		}
		fmt.Printf("Saved token to %s\n", outFile)
	case <-time.After(5 * time.Minute):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-ctx.Done():
		logger.Error("Interrupted")
		os.Exit(1)
	}
}
