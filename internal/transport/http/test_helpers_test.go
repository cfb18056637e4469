package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kurspanel/kurspanel-server/internal/auth"
	"github.com/kurspanel/kurspanel-server/internal/config"
	"github.com/kurspanel/kurspanel-server/internal/proto"
	"github.com/kurspanel/kurspanel-server/internal/store/sqlite"
)

const (
	testSchoolID   = "ehliyet-a"
	testSchoolName = "Ehliyet A Kursu"
	testPassword   = "parola123"
)

// newTestServer builds a server over an in-memory store with one seeded school.
func newTestServer(t *testing.T) (*stdhttp.Server, *sqlite.Store) {
	t.Helper()

	logger := zerolog.Nop()
	st, err := sqlite.New(":memory:", &logger)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	err = st.SeedSchools(context.Background(), []sqlite.Seed{
		{ID: testSchoolID, Name: testSchoolName, PasswordHash: hash},
		{ID: "ehliyet-b", Name: "Ehliyet B Kursu", PasswordHash: hash},
	})
	if err != nil {
		t.Fatalf("seed schools: %v", err)
	}

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	cfg := config.Default()
	return NewServer(st, authService, &cfg, &logger), st
}

// doJSON runs one request through the handler and returns the recorder.
func doJSON(t *testing.T, server *stdhttp.Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	} else {
		reader = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)
	return resp
}

// loginToken logs the seeded school in and returns its token.
func loginToken(t *testing.T, server *stdhttp.Server) string {
	t.Helper()

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/login", "",
		proto.LoginRequest{SchoolID: testSchoolID, Password: testPassword})
	if resp.Code != stdhttp.StatusOK {
		t.Fatalf("login status = %d: %s", resp.Code, resp.Body.String())
	}

	var loginResp proto.LoginResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("empty token")
	}
	return loginResp.Token
}
