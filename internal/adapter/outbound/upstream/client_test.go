package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPost_ForwardsBodyAndContentType(t *testing.T) {
	var gotBody []byte
	var gotPath, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Post(context.Background(), "/public-interface.php", []byte(`{"method":"getCmd"}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("status = %d", resp.Status)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %q", resp.Body)
	}
	if gotPath != "/public-interface.php" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCT != "application/json" {
		t.Errorf("content type = %q", gotCT)
	}
	if string(gotBody) != `{"method":"getCmd"}` {
		t.Errorf("forwarded body = %q", gotBody)
	}
}

func TestPost_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Post(context.Background(), "/x", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if resp.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 passed through", resp.Status)
	}
}

func TestPost_UnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // listener gone

	_, err := New(srv.URL).Post(context.Background(), "/x", nil)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("got %v, want ErrUnreachable", err)
	}
}

func TestPost_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL, WithTimeout(20*time.Millisecond))
	if _, err := c.Post(context.Background(), "/x", nil); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("got %v, want ErrUnreachable on timeout", err)
	}
}

func TestSetBaseURL(t *testing.T) {
	c := New("https://old.example.com/")
	if got := c.BaseURL(); got != "https://old.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", got)
	}
	c.SetBaseURL("https://new.example.com:883")
	if got := c.BaseURL(); got != "https://new.example.com:883" {
		t.Errorf("BaseURL after SetBaseURL = %q", got)
	}
}

func TestPost_AddsLeadingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Post(context.Background(), "relative", nil); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/relative" {
		t.Errorf("path = %q", gotPath)
	}
}
