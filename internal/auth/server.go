package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// AuthTimeout is how long to wait for the user to complete auth
const AuthTimeout = 5 * time.Minute

const successPage = `<!DOCTYPE html>
<html>
<head><title>paceload authorized</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 20vh;">
<h1>paceload is connected to Strava</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

// callback is the outcome of one redirect to the callback URL.
type callback struct {
	code string
	err  error
}

// callbackHandler accepts the first redirect carrying the expected state and
// reports it on result. Later requests are answered but not reported.
type callbackHandler struct {
	state  string
	result chan callback
}

func newCallbackHandler(state string) *callbackHandler {
	return &callbackHandler{state: state, result: make(chan callback, 1)}
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var cb callback
	switch {
	case q.Get("state") != h.state:
		cb.err = errors.New("oauth state mismatch")
	case q.Get("error") != "":
		cb.err = fmt.Errorf("strava denied access: %s", q.Get("error"))
	case q.Get("code") == "":
		cb.err = errors.New("no code in callback")
	default:
		cb.code = q.Get("code")
	}

	if cb.err != nil {
		http.Error(w, cb.err.Error(), http.StatusBadRequest)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, successPage)
	}

	select {
	case h.result <- cb:
	default:
	}
}

// Authenticate runs the OAuth flow with a local callback server listening on
// the host of cfg.RedirectURL. The authorization URL is written to out.
func Authenticate(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*AuthResult, error) {
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", cfg.RedirectURL)
	}
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	handler := newCallbackHandler(state)
	mux := http.NewServeMux()
	mux.Handle(redirect.Path, handler)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	defer shutdownServer(server)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("callback server: %w", err)
		}
	}()

	fmt.Fprintf(out, "\nOpen this URL to authorize paceload with Strava:\n\n  %s\n\nWaiting for authentication...\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))
	slog.Info("waiting for oauth callback", "listen", redirect.Host)

	ctx, cancel := context.WithTimeout(ctx, AuthTimeout)
	defer cancel()

	var cb callback
	select {
	case cb = <-handler.result:
	case err := <-serveErr:
		return nil, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("authentication timeout after %v", AuthTimeout)
		}
		return nil, ctx.Err()
	}
	if cb.err != nil {
		return nil, cb.err
	}

	token, err := cfg.Exchange(ctx, cb.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return &AuthResult{Token: token, AthleteID: ExtractAthleteID(token)}, nil
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
