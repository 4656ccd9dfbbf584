package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-ingest/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// testEntry returns a logger entry that discards output
func testEntry() *logrus.Entry {
	return logrus.NewEntry(testLogger())
}

func TestFetcher_Get_SetsHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(server.Client(), testLogger())
	resp, err := fetcher.Get(context.Background(), server.URL, "listing-ingest-test/1.0", 5*time.Second, "https://example.com/listing/1")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "listing-ingest-test/1.0", gotUA)
	assert.Equal(t, "https://example.com/listing/1", gotReferer)
}

func TestFetcher_Get_NoRefererHeaderWhenEmpty(t *testing.T) {
	var hasReferer bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasReferer = r.Header["Referer"]
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(server.Client(), testLogger())
	resp, err := fetcher.Get(context.Background(), server.URL, "ua", 5*time.Second, "")
	require.NoError(t, err)
	resp.Body.Close()

	assert.False(t, hasReferer)
}

func TestFetcher_Get_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(server.Client(), testLogger())
	resp, err := fetcher.Get(context.Background(), server.URL, "ua", 5*time.Second, "")
	require.NoError(t, err, "HTTP status codes are the caller's problem")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetcher_Get_TransportErrorWrapsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // connection refused from here on

	fetcher := NewFetcher(&http.Client{}, testLogger())
	_, err := fetcher.Get(context.Background(), url, "ua", 5*time.Second, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNetwork)
}

func TestFetcher_Get_BadURLWrapsRequestCreation(t *testing.T) {
	fetcher := NewFetcher(&http.Client{}, testLogger())
	_, err := fetcher.Get(context.Background(), "http://bad url with spaces", "ua", 0, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRequestCreation)
}

func TestFetcher_Get_TimeoutCancelsSlowResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)

	fetcher := NewFetcher(server.Client(), testLogger())
	start := time.Now()
	_, err := fetcher.Get(context.Background(), server.URL, "ua", 100*time.Millisecond, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNetwork)
	assert.Less(t, time.Since(start), 3*time.Second)
}
