package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *logCapture) Logf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *logCapture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timeout = 5 * time.Second
	return opts
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "tsm3u/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data":{"channels":[]}}`))
	}))
	defer ts.Close()

	lg := &logCapture{}
	body, err := New(testOptions(), lg).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"channels":[]}}`, string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, lg.all(), "nothing logged on success")
}

func TestFetchStatusCodes(t *testing.T) {
	tbl := []struct {
		status int
		ok     bool
	}{
		{http.StatusOK, true},
		{http.StatusCreated, true},
		{http.StatusAccepted, true},
		{http.StatusNonAuthoritativeInfo, true},
		{299, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusConflict, false},
	}

	for _, tt := range tbl {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			var hits int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"data":{}}`))
			}))
			defer ts.Close()

			body, err := New(testOptions(), log.NoOp).Fetch(context.Background(), ts.URL)
			if tt.ok {
				require.NoError(t, err)
				assert.JSONEq(t, `{"data":{}}`, string(body))
				assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
				return
			}
			require.ErrorIs(t, err, ErrExhausted)
			assert.Contains(t, err.Error(), fmt.Sprintf("unexpected status code %d", tt.status))
			assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
		})
	}
}

func TestFetchAlwaysFailing(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	lg := &logCapture{}
	body, err := New(testOptions(), lg).Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Nil(t, body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	lines := lg.all()
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, "[WARN] "), line)
		assert.Contains(t, line, fmt.Sprintf("(attempt %d/3)", i+1))
		assert.Contains(t, line, "unexpected status code 404")
	}
}

func TestFetchFailsTwiceThenSucceeds(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			_, _ = w.Write([]byte(`{"data": [broken`))
		default:
			_, _ = w.Write([]byte(`{"data":{"hmac":{"hdntl":{"value":"TOKEN123"}}}}`))
		}
	}))
	defer ts.Close()

	lg := &logCapture{}
	body, err := New(testOptions(), lg).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "TOKEN123")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	lines := lg.all()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "(attempt 1/3)")
	assert.Contains(t, lines[1], "(attempt 2/3)")
	assert.Contains(t, lines[1], "not valid JSON")
}

func TestFetchStopsAfterSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	opts := testOptions()
	opts.MaxAttempts = 5
	_, err := New(opts, log.NoOp).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchSingleAttempt(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	opts := testOptions()
	opts.MaxAttempts = 1
	lg := &logCapture{}
	_, err := New(opts, lg).Fetch(context.Background(), ts.URL)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	require.Len(t, lg.all(), 1)
	assert.Contains(t, lg.all()[0], "(attempt 1/1)")
}

func TestFetchConnectionError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	lg := &logCapture{}
	_, err := New(testOptions(), lg).Fetch(context.Background(), url)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, lg.all(), 3)
}

func TestFetchCanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testOptions(), nil).Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
