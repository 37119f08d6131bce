package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVerifyJWT(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	valid, err := SignJWT("secret", TokenClaims{Sub: "user_1", Exp: now.Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	claims, err := VerifyJWT("secret", valid, now)
	if err != nil || claims.Sub != "user_1" {
		t.Fatalf("VerifyJWT = %#v, %v", claims, err)
	}

	expired, _ := SignJWT("secret", TokenClaims{Sub: "user_1", Exp: now.Add(-time.Minute).Unix()})
	noSubject, _ := SignJWT("secret", TokenClaims{})
	tests := map[string]string{
		"wrong secret": valid,
		"expired":      expired,
		"no subject":   noSubject,
		"malformed":    "abc.def",
	}
	for name, token := range tests {
		secret := "secret"
		if name == "wrong secret" {
			secret = "other"
		}
		if _, err := VerifyJWT(secret, token, now); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestAuthJWT(t *testing.T) {
	var gotOwner, gotLocale string
	handler := AuthJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = OwnerIDFromContext(r.Context())
		gotLocale = LocaleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token, _ := SignJWT("secret", TokenClaims{Sub: "user_1", Locale: "ko-KR"})
	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || gotOwner != "user_1" || gotLocale != "ko" {
		t.Fatalf("status = %d owner = %q locale = %q", rec.Code, gotOwner, gotLocale)
	}

	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d", header, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["code"] != "UNAUTHORIZED" || body["error"] == "" {
			t.Fatalf("%q: body = %s", header, rec.Body.String())
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id = %q, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if len(seen) != 36 {
		t.Fatalf("oversized id should be replaced, got %q", seen)
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight status = %d headers = %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" || rec.Code != http.StatusOK {
		t.Fatalf("unlisted origin got headers: %v", rec.Header())
	}
}
