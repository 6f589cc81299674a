package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrMalformedReply is returned when the backend body is not the expected JSON
	ErrMalformedReply = errors.New("backend returned an unreadable response")

	// ErrEmptyFilename is returned when a success reply carries no filename
	ErrEmptyFilename = errors.New("backend reported success without a filename")
)

// maxReplySize caps how much of a backend response is read
const maxReplySize = 1 << 20

// StatusError is returned for non-2xx responses without a usable detail
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend responded with status %d %s", e.Code, http.StatusText(e.Code))
}

// Reply is the JSON document returned by POST /download
type Reply struct {
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Title    string `json:"title,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Config configures the backend client
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the external download backend
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at cfg.BaseURL.
// A nil httpClient gets a default one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the backend origin
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FileURL returns the download location of a file produced by the backend
func (c *Client) FileURL(filename string) string {
	return c.baseURL + "/file/" + url.PathEscape(filename)
}

// Download asks the backend to fetch videoURL. It performs exactly one request.
// A reply with a non-success status is returned without error; transport
// failures, unexpected status codes and unreadable bodies are errors.
func (c *Client) Download(ctx context.Context, videoURL string) (*Reply, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if err := mw.WriteField("url", videoURL); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var reply Reply
	decodeErr := json.Unmarshal(data, &reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// FastAPI style errors still carry a detail worth showing
		if decodeErr == nil && reply.Detail != "" {
			if reply.Status == "" {
				reply.Status = "error"
			}
			return &reply, nil
		}
		return nil, &StatusError{Code: resp.StatusCode}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, decodeErr)
	}
	if reply.Status == "" {
		if reply.Detail == "" {
			return nil, fmt.Errorf("%w: missing status", ErrMalformedReply)
		}
		// A bare detail is still a failure the user should read
		reply.Status = "error"
	}

	return &reply, nil
}
