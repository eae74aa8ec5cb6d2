package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Options is the JSON payload sent alongside the file. Webhook carries the
// address the classifier may push its result to; polling our status endpoint
// remains available regardless.
type Options struct {
	FileID   string `json:"fileId"`
	TaskID   string `json:"taskId"`
	Detailed bool   `json:"detailed"`
	Webhook  string `json:"webhook,omitempty"`
}

// StatusError is a non-2xx classifier reply. Error returns the response body
// verbatim so operators see the remote diagnostic in the task record.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return e.Body
}

// Client talks to the external classifier. Analysis of a large file is a
// minutes-scale call, so the timeout is configured accordingly.
type Client struct {
	httpc   *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Analyze issues a single multipart POST carrying the file bytes and the
// options payload. The body is streamed through a pipe, never buffered
// whole. No retry here: the classifier embeds its own retry policy.
func (c *Client) Analyze(ctx context.Context, file io.Reader, filename string, opts Options) (json.RawMessage, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		var part io.Writer
		if part, err = mw.CreateFormFile("file", filename); err != nil {
			return
		}
		if _, err = io.Copy(part, file); err != nil {
			return
		}

		var optsJSON []byte
		if optsJSON, err = json.Marshal(opts); err != nil {
			return
		}
		if err = mw.WriteField("options", string(optsJSON)); err != nil {
			return
		}

		err = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", pr)
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyze response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
