package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "3", r.URL.Query().Get("periods"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodPost,
		URL:         srv.URL,
		QueryParams: map[string][]string{"periods": {"3"}},
		Body:        map[string]int{"a": 1},
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestClientRetriesTemporaryStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithRetries(2, time.Millisecond))
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{Method: MethodPost, URL: srv.URL}, nil))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad frame", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(WithRetries(3, time.Millisecond)).
		SendAndParse(context.Background(), &RequestOptions{Method: MethodPost, URL: srv.URL}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, "bad frame", se.Body)
	assert.False(t, se.Temporary())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(WithTimeout(time.Second)).
		SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: url}, nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClientDoesNotRetryTimeouts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := NewClient(WithTimeout(100*time.Millisecond), WithRetries(2, time.Millisecond)).
		SendAndParse(context.Background(), &RequestOptions{Method: MethodPost, URL: srv.URL}, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryGatewayFailures(t *testing.T) {
	for _, status := range []int{http.StatusBadGateway, http.StatusGatewayTimeout} {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))

		err := NewClient(WithRetries(2, time.Millisecond)).
			SendAndParse(context.Background(), &RequestOptions{Method: MethodPost, URL: srv.URL}, nil)
		srv.Close()

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.Temporary())
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
	}
}

func TestClientRetriesConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	start := time.Now()
	err := NewClient(WithTimeout(time.Second), WithRetries(2, 20*time.Millisecond)).
		SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: url}, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond, "two backoffs of 20ms and 40ms")
}
