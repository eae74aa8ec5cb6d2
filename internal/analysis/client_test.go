package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAnalyze(t *testing.T) {
	var (
		gotPath    string
		gotAuth    string
		gotFile    []byte
		gotOptions Options
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile, err = io.ReadAll(f)
		require.NoError(t, err)

		require.NoError(t, json.Unmarshal([]byte(r.FormValue("options")), &gotOptions))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"label":"document","confidence":0.92}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", 5*time.Second)

	result, err := c.Analyze(context.Background(), strings.NewReader("file body"), "report.pdf", Options{
		FileID:   "f-1",
		TaskID:   "t-1",
		Detailed: true,
		Webhook:  "http://cb.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/analyze", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, []byte("file body"), gotFile)
	assert.Equal(t, Options{FileID: "f-1", TaskID: "t-1", Detailed: true, Webhook: "http://cb.example.com"}, gotOptions)
	assert.JSONEq(t, `{"label":"document","confidence":0.92}`, string(result))
}

func TestClientAnalyzeNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Analyze(context.Background(), strings.NewReader("x"), "a.txt", Options{})
	require.NoError(t, err)
}

func TestClientAnalyzeRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Analyze(context.Background(), strings.NewReader("x"), "a.txt", Options{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "model unavailable\n", statusErr.Error())
}

func TestClientAnalyzeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Analyze(context.Background(), strings.NewReader("x"), "a.txt", Options{})
	assert.Error(t, err)
}
