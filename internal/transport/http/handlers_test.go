package http

import (
	"encoding/json"
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/kurspanel/kurspanel-server/internal/core"
	"github.com/kurspanel/kurspanel-server/internal/proto"
)

func TestLogin(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/login", "",
		proto.LoginRequest{SchoolID: testSchoolID, Password: testPassword})
	if resp.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	var loginResp proto.LoginResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if loginResp.School.ID != testSchoolID {
		t.Errorf("school id = %q, want %q", loginResp.School.ID, testSchoolID)
	}
	if loginResp.Token == "" {
		t.Error("expected a token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/login", "",
		proto.LoginRequest{SchoolID: testSchoolID, Password: "yanlis"})
	if resp.Code != stdhttp.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.Code)
	}
}

func TestListSchoolsIsPublic(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, stdhttp.MethodGet, "/api/schools", "", nil)
	if resp.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	var schools []proto.SchoolDTO
	if err := json.Unmarshal(resp.Body.Bytes(), &schools); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(schools) != 2 {
		t.Fatalf("got %d schools, want 2", len(schools))
	}
}

func TestWriteCandidates(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginToken(t, server)

	resp := doJSON(t, server, stdhttp.MethodPut, "/api/schools/"+testSchoolID+"/candidates", token,
		proto.CandidatesRequest{Candidates: map[string]int{"B": 4, "A1": 2}})
	if resp.Code != stdhttp.StatusNoContent {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, server, stdhttp.MethodGet, "/api/schools", "", nil)
	var schools []proto.SchoolDTO
	if err := json.Unmarshal(resp.Body.Bytes(), &schools); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, s := range schools {
		if s.ID == testSchoolID {
			if s.Candidates["B"] != 4 || s.Candidates["A1"] != 2 {
				t.Errorf("candidates = %v, want B:4 A1:2", s.Candidates)
			}
			return
		}
	}
	t.Fatalf("school %s missing from snapshot", testSchoolID)
}

func TestWriteCandidatesRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, stdhttp.MethodPut, "/api/schools/"+testSchoolID+"/candidates", "",
		proto.CandidatesRequest{Candidates: map[string]int{"B": 1}})
	if resp.Code != stdhttp.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.Code)
	}
}

func TestWriteCandidatesForeignSchoolForbidden(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginToken(t, server)

	resp := doJSON(t, server, stdhttp.MethodPut, "/api/schools/ehliyet-b/candidates", token,
		proto.CandidatesRequest{Candidates: map[string]int{"B": 1}})
	if resp.Code != stdhttp.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.Code)
	}
}

func TestWriteCandidatesUnknownCategory(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginToken(t, server)

	resp := doJSON(t, server, stdhttp.MethodPut, "/api/schools/"+testSchoolID+"/candidates", token,
		proto.CandidatesRequest{Candidates: map[string]int{"E": 1}})
	if resp.Code != stdhttp.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.Code)
	}
}

func TestAppendMessage(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginToken(t, server)

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/messages", token,
		proto.AppendMessageRequest{SchoolID: testSchoolID, SchoolName: testSchoolName, Content: "merhaba"})
	if resp.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	var msgResp proto.AppendMessageResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &msgResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if msgResp.ID == "" {
		t.Error("expected a message id")
	}
}

func TestAppendMessageBlankContentRejected(t *testing.T) {
	server, _ := newTestServer(t)
	token := loginToken(t, server)

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/messages", token,
		proto.AppendMessageRequest{SchoolID: testSchoolID, SchoolName: testSchoolName, Content: "   "})
	if resp.Code != stdhttp.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.Code)
	}
}

// The sender identity comes from the token, whatever the body claims.
func TestAppendMessageIdentityFromToken(t *testing.T) {
	server, st := newTestServer(t)
	token := loginToken(t, server)

	got := make(chan core.Message, 4)
	unsub, err := st.SubscribeMessages(func(msg core.Message, err error) {
		if err == nil {
			got <- msg
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	resp := doJSON(t, server, stdhttp.MethodPost, "/api/messages", token,
		proto.AppendMessageRequest{SchoolID: "ehliyet-b", SchoolName: "Sahte", Content: "selam"})
	if resp.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	select {
	case msg := <-got:
		if msg.SchoolID != testSchoolID {
			t.Errorf("sender id = %q, want %q", msg.SchoolID, testSchoolID)
		}
		if msg.SchoolName != testSchoolName {
			t.Errorf("sender name = %q, want %q", msg.SchoolName, testSchoolName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appended message")
	}
}
