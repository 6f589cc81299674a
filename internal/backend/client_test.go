package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, nil), srv
}

func TestDownload_SendsMultipartURL(t *testing.T) {
	var gotURL, gotPath, gotMethod string
	var calls int

	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotMethod = r.Method
		gotPath = r.URL.Path
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Expected multipart body, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 16); err != nil {
			t.Errorf("Failed to parse form: %v", err)
			return
		}
		gotURL = r.FormValue("url")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","filename":"a.mp4","title":"T"}`))
	})

	reply, err := c.Download(context.Background(), "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected exactly one request, got %d", calls)
	}
	if gotMethod != http.MethodPost || gotPath != "/download" {
		t.Errorf("Expected POST /download, got %s %s", gotMethod, gotPath)
	}
	if gotURL != "https://youtube.com/watch?v=abc" {
		t.Errorf("Expected url field to be forwarded, got %q", gotURL)
	}
	if reply.Status != "success" || reply.Filename != "a.mp4" || reply.Title != "T" {
		t.Errorf("Unexpected reply: %+v", reply)
	}
}

func TestDownload_BackendFailureIsReply(t *testing.T) {
	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","detail":"bad url"}`))
	})

	reply, err := c.Download(context.Background(), "https://youtube.com/x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply.Status != "error" || reply.Detail != "bad url" {
		t.Errorf("Unexpected reply: %+v", reply)
	}
}

func TestDownload_Non2xxWithDetail(t *testing.T) {
	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Unsupported URL"}`))
	})

	reply, err := c.Download(context.Background(), "https://youtube.com/x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply.Status != "error" || reply.Detail != "Unsupported URL" {
		t.Errorf("Unexpected reply: %+v", reply)
	}
}

func TestDownload_Non2xxWithoutDetail(t *testing.T) {
	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Download(context.Background(), "https://youtube.com/x")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if se.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", se.Code)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("Expected status code in message, got %s", err.Error())
	}
}

func TestDownload_MissingStatusWithDetail(t *testing.T) {
	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"bad url"}`))
	})

	reply, err := c.Download(context.Background(), "https://youtube.com/x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply.Status != "error" || reply.Detail != "bad url" {
		t.Errorf("Unexpected reply: %+v", reply)
	}
}

func TestDownload_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"HTML", "<html>oops</html>"},
		{"Empty", ""},
		{"No status", `{"filename":"a.mp4"}`},
		{"Empty object", `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})

			_, err := c.Download(context.Background(), "https://youtube.com/x")
			if !errors.Is(err, ErrMalformedReply) {
				t.Errorf("Expected ErrMalformedReply, got %v", err)
			}
		})
	}
}

func TestDownload_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: base, Timeout: time.Second}, nil)
	_, err := c.Download(context.Background(), "https://youtube.com/x")
	if err == nil {
		t.Fatal("Expected error for closed backend")
	}
}

func TestDownload_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	_, err := c.Download(context.Background(), "https://youtube.com/x")
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected request to be aborted by the timeout")
	}
}

func TestDownload_ContextCancelled(t *testing.T) {
	c, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","filename":"a.mp4"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Download(ctx, "https://youtube.com/x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFileURL(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:8000/"}, nil)

	if got := c.FileURL("a.mp4"); got != "http://127.0.0.1:8000/file/a.mp4" {
		t.Errorf("Unexpected file URL: %s", got)
	}
	if got := c.FileURL("my video.mp4"); got != "http://127.0.0.1:8000/file/my%20video.mp4" {
		t.Errorf("Expected escaped file URL, got %s", got)
	}
	if c.BaseURL() != "http://127.0.0.1:8000" {
		t.Errorf("Expected trailing slash trimmed, got %s", c.BaseURL())
	}
}
