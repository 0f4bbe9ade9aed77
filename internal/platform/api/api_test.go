package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	BadGateway(rr, "PROVIDER_FETCH_FAILED", "anilist down", "rid-1", map[string]any{"provider": "anilist"})

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "PROVIDER_FETCH_FAILED" || body.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Error.Details["provider"] != "anilist" {
		t.Fatalf("expected provider detail, got %v", body.Error.Details)
	}
}

func TestInternal_HidesDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	Internal(rr, "rid-2")

	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "INTERNAL" || body.Error.Details != nil {
		t.Fatalf("unexpected body: %+v", body)
	}
}
