package googlecal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/option"

	"github.com/clinicops/scheduling-service/internal/credentials"
)

func TestExchangeCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("code"); got != "auth-code" {
			t.Fatalf("unexpected code: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer ts.Close()

	c := NewClient(Config{ClientID: "id", ClientSecret: "secret", RedirectURI: "https://app/cb"}, nil)
	c.SetAuthEndpoint(ts.URL+"/auth", ts.URL+"/token")

	cred, err := c.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode error: %v", err)
	}
	if cred.SourceType != credentials.SourceGoogle {
		t.Fatalf("unexpected source type: %s", cred.SourceType)
	}
	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected tokens: %+v", cred)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(Config{ClientID: "id", ClientSecret: "secret"}, nil)
	c.SetAuthEndpoint(ts.URL+"/auth", ts.URL+"/token")

	_, err := c.ExchangeCode(context.Background(), "bad-code")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestPrimaryCalendarID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": "team@clinic.example", "summary": "Team"},
				{"id": "dr.cohen@clinic.example", "summary": "Dr. Cohen", "primary": true},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(Config{ClientID: "id", ClientSecret: "secret"}, nil,
		option.WithEndpoint(ts.URL), option.WithoutAuthentication())

	cred := &credentials.Credential{
		SourceType:  credentials.SourceGoogle,
		AccessToken: "access-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	id, err := c.PrimaryCalendarID(context.Background(), cred)
	if err != nil {
		t.Fatalf("PrimaryCalendarID error: %v", err)
	}
	if id != "dr.cohen@clinic.example" {
		t.Fatalf("unexpected primary calendar: %s", id)
	}
}
