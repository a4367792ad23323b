package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestAuthenticator(t *testing.T, handler http.Handler) *Authenticator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	auth := NewAuthenticator(zap.NewNop())
	auth.accountsURL = server.URL
	auth.apiURL = server.URL
	return auth
}

func validCredentials() Credentials {
	return Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "refresh"}
}

func TestAuthenticateSuccess(t *testing.T) {
	auth := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token":
			if r.Method != http.MethodPost {
				t.Errorf("token request method = %s", r.Method)
			}
			user, pass, ok := r.BasicAuth()
			if !ok || user != "cid" || pass != "secret" {
				t.Error("token request missing basic auth")
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("bad form: %v", err)
			}
			if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q", got)
			}
			fmt.Fprint(w, `{"access_token": "new-token", "token_type": "Bearer", "expires_in": 3600}`)
		case "/v1/me":
			fmt.Fprint(w, `{"product": "premium"}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))

	session, err := auth.Authenticate(context.Background(), validCredentials())
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if session.AccessToken != "new-token" {
		t.Errorf("access token = %q", session.AccessToken)
	}
	if !session.Premium {
		t.Error("premium account should yield a premium session")
	}
}

func TestAuthenticateFreeAccount(t *testing.T) {
	auth := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			fmt.Fprint(w, `{"access_token": "new-token", "token_type": "Bearer", "expires_in": 3600}`)
			return
		}
		fmt.Fprint(w, `{"product": "free"}`)
	}))

	session, err := auth.Authenticate(context.Background(), validCredentials())
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if session.Premium {
		t.Error("free account must not yield a premium session")
	}
}

func TestAuthenticateRejected(t *testing.T) {
	auth := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := auth.Authenticate(context.Background(), validCredentials())
	if !IsResolutionError(err, ResolutionUnauthorized) {
		t.Fatalf("expected unauthorized, got: %v", err)
	}
}

func TestAuthenticateMissingCredentials(t *testing.T) {
	auth := NewAuthenticator(zap.NewNop())
	_, err := auth.Authenticate(context.Background(), Credentials{})
	if !IsResolutionError(err, ResolutionUnauthorized) {
		t.Fatalf("expected unauthorized for empty credentials, got: %v", err)
	}
}

func TestAuthenticateProfileFailureIsNotFatal(t *testing.T) {
	auth := newTestAuthenticator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			fmt.Fprint(w, `{"access_token": "new-token", "token_type": "Bearer", "expires_in": 3600}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	session, err := auth.Authenticate(context.Background(), validCredentials())
	if err != nil {
		t.Fatalf("profile probing is best effort, got error: %v", err)
	}
	if session.Premium {
		t.Error("unknown tier must fall back to non-premium")
	}
}
