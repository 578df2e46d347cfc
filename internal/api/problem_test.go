package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/librarrarian/dashboard/internal/scan"
	"github.com/librarrarian/dashboard/internal/store"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding problem body: %v (body=%s)", err, w.Body.String())
	}
	return p
}

func TestWriteStoreError_StatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"registration conflict", store.ErrRegistrationConflict, http.StatusConflict, "REGISTRATION_CONFLICT"},
		{"session invalid", store.ErrSessionInvalid, http.StatusForbidden, "SESSION_INVALID"},
		{"missing session", store.ErrMissingSession, http.StatusUnauthorized, "MISSING_SESSION"},
		{"unavailable", store.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"scan busy", scan.ErrScanBusy, http.StatusConflict, "BUSY"},
		{"unmapped", errExampleUnmapped, http.StatusInternalServerError, "INTERNAL"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whatever", nil)
			w := httptest.NewRecorder()

			writeStoreError(w, req, c.err)

			if w.Code != c.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, c.wantStatus)
			}
			p := decodeProblem(t, w)
			if p.Code != c.wantCode {
				t.Errorf("code = %q, want %q", p.Code, c.wantCode)
			}
		})
	}
}

func TestWriteStoreError_QueueEmptyIsNotAnError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/request_job", nil)
	w := httptest.NewRecorder()

	writeStoreError(w, req, store.ErrQueueEmpty)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for an empty queue, got %d", w.Code)
	}
	if w.Body.String() != "{}\n" {
		t.Errorf("expected an empty JSON object body, got %q", w.Body.String())
	}
}

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	respondJSON(w, http.StatusCreated, map[string]string{"message": "ok"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["message"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

var errExampleUnmapped = &Problem{Code: "SOMETHING_ELSE", Message: "unmapped"}
