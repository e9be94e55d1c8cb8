package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/progress"
)

func TestClient_FetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/intern-courses/intern-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"CourseName":"C1","Topic":"T1","SubTopic":"S1","Materials":[{"materialID":"m1","name":"Intro","url":"/uploads/m1.pdf"}]},
			{"CourseName":"C2"}
		]`))
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	entries, err := client.FetchCatalog(context.Background(), "intern-1")
	if err != nil {
		t.Fatalf("FetchCatalog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if m := entries[0].Materials; len(m) != 1 || m[0].ID != "m1" || m[0].URL != "/uploads/m1.pdf" {
		t.Errorf("materials = %+v, want m1", m)
	}
	if entries[1].Topic != "" {
		t.Errorf("entries[1].Topic = %q, want empty", entries[1].Topic)
	}
}

func TestClient_FetchProgress(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantEmpty bool
	}{
		{"empty object", `{"course_status":{}}`, true},
		{"null status", `{"course_status":null}`, true},
		{"missing status", `{}`, true},
		{"legacy record", `{"course_status":{"C1":{"status":true,"topics":{"T1":{"status":true,"subTopics":{"S1":{"status":true,"materials":{"m1":true}}}}}}}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/intern-progress/intern-1" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewClient(server.URL)
			r, err := client.FetchProgress(context.Background(), "intern-1")
			if err != nil {
				t.Fatalf("FetchProgress() error = %v", err)
			}
			if r == nil {
				t.Fatal("FetchProgress() returned nil record")
			}
			if r.Empty() != tt.wantEmpty {
				t.Errorf("Empty() = %v, want %v", r.Empty(), tt.wantEmpty)
			}
		})
	}
}

func TestClient_SaveProgress(t *testing.T) {
	var got ProgressUpdate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/update-progress" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL + "/")
	rec := progress.Record{}.With(progress.Path{Course: "C1", Topic: "T1", SubTopic: "S1", Material: "m1"}, progress.MarkCompleted)
	if err := client.SaveProgress(context.Background(), "intern-1", rec); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	if got.InternID != "intern-1" {
		t.Errorf("internID = %q, want intern-1", got.InternID)
	}
	if !got.Progress.Material("C1", "T1", "S1", "m1").Completed {
		t.Errorf("progress = %+v, want m1 completed", got.Progress)
	}
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL)
	err := client.SaveProgress(context.Background(), "intern-1", progress.Record{})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("SaveProgress() error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || !se.Temporary() {
		t.Errorf("StatusError = %+v, want temporary 503", se)
	}
}

func TestStatusError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		if got := (&StatusError{StatusCode: tt.code}).Temporary(); got != tt.want {
			t.Errorf("Temporary(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("NewClient(\"\") should error")
	}
}

func TestContentURL(t *testing.T) {
	tests := []struct {
		name, base, locator, want string
	}{
		{"joins with slash", "https://files.example.com", "/uploads/m1.pdf", "https://files.example.com/uploads/m1.pdf"},
		{"trailing slash base", "https://files.example.com/", "/uploads/m1.pdf", "https://files.example.com/uploads/m1.pdf"},
		{"relative locator", "https://files.example.com", "uploads/m1.pdf", "https://files.example.com/uploads/m1.pdf"},
		{"absolute locator", "https://files.example.com", "https://cdn.example.com/m1.pdf", "https://cdn.example.com/m1.pdf"},
		{"no base", "", "/uploads/m1.pdf", "/uploads/m1.pdf"},
		{"no locator", "https://files.example.com", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentURL(tt.base, tt.locator); got != tt.want {
				t.Errorf("ContentURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
