package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Message != "I have a fever" || req.UserID != "user_1" || req.Language != "en" {
			t.Errorf("unexpected request body %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"Rest and hydrate.","timestamp":"2024-01-01T00:00:00","detected_language":"en","confidence":0.9}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	resp, err := c.Chat(context.Background(), ChatRequest{Message: "I have a fever", UserID: "user_1", Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Rest and hydrate." || resp.DetectedLanguage != "en" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", resp.Confidence)
	}
}

func TestChatWithoutConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok","detected_language":"hi"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Message: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Confidence != nil {
		t.Fatalf("expected nil confidence, got %v", *resp.Confidence)
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Message: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "boom" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestChatMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `<html>`,
		"empty response": `{"response":"  "}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Message: "x"})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestChatTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Chat(context.Background(), ChatRequest{Message: "x"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestCheck(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultProbePath {
			t.Errorf("unexpected probe path %s", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))

	c := NewClient(srv.URL, time.Second)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("404 should count as reachable: %v", err)
	}

	status.Store(http.StatusBadGateway)
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected 502 to count as unreachable")
	}

	srv.Close()
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected closed server to be unreachable")
	}
}
