package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"live-quiz-service/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	err := cmd.Execute()
	return out.String(), err
}

func TestHostResetRequiresYes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := runCLI(t, "host", "reset", "--server", srv.URL)
	if !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request without --yes, got %d", calls.Load())
	}
}

func TestHostCommandsCallAPI(t *testing.T) {
	var paths []string
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		lastBody = nil
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		qid := int64(3)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.SessionState{Phase: domain.PhaseVoting, ActiveQuestionID: &qid, Revision: 7})
	}))
	defer srv.Close()

	out, err := runCLI(t, "host", "start", "3", "--server", srv.URL)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "phase=voting question=3 revision=7") {
		t.Fatalf("unexpected output %q", out)
	}
	if lastBody["questionId"] != float64(3) {
		t.Fatalf("expected questionId 3 in body, got %v", lastBody)
	}

	if _, err := runCLI(t, "host", "reveal", "--force", "--server", srv.URL); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if lastBody["force"] != true {
		t.Fatalf("expected force flag in body, got %v", lastBody)
	}

	if _, err := runCLI(t, "host", "purge", "--yes", "--server", srv.URL); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if lastBody["confirm"] != true {
		t.Fatalf("expected confirm in body, got %v", lastBody)
	}

	want := []string{"/api/host/start", "/api/host/reveal", "/api/host/purge"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, paths)
	}
}

func TestHostReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid phase transition"})
	}))
	defer srv.Close()

	_, err := runCLI(t, "host", "reveal", "--server", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected 409 error, got %v", err)
	}
}
