package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedmon/pkg/monitor"
	"github.com/umputun/feedmon/pkg/notify"
	"github.com/umputun/feedmon/server/mocks"
)

func TestServer_Run(t *testing.T) {
	port := freePort(t)
	disp := &mocks.DispatcherMock{}
	srv := New(Params{Dispatcher: disp, Listen: fmt.Sprintf("127.0.0.1:%d", port), Timeout: 5 * time.Second, Version: "1.0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/ping", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:gosec // test url
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_Middleware(t *testing.T) {
	srv := New(Params{Dispatcher: &mocks.DispatcherMock{}, Version: "1.2.3"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "feedmon", resp.Header.Get("App-Name"))
	assert.Equal(t, "1.2.3", resp.Header.Get("App-Version"))
}

func TestServer_Events(t *testing.T) {
	ch := make(chan notify.Event, 1)
	unsubscribed := make(chan struct{})
	events := &mocks.EventsMock{
		SubscribeFunc: func() (<-chan notify.Event, func()) {
			return ch, func() { close(unsubscribed) }
		},
	}
	srv := New(Params{Dispatcher: &mocks.DispatcherMock{}, Events: events})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	ch <- notify.Event{MatchID: "f1-abc", Title: "Go release", Topics: []string{"go"}}

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	assert.Equal(t, "event: match", lines[0])
	assert.Equal(t, "id: f1-abc", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "data: "))
	assert.Contains(t, lines[2], `"title":"Go release"`)

	cancel()
	select {
	case <-unsubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not released")
	}
}

func TestServer_EventsDisabled(t *testing.T) {
	srv := New(Params{Dispatcher: &mocks.DispatcherMock{}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// dispatcherFor makes a dispatcher mock answering with fn
func dispatcherFor(fn func(cmd monitor.Command) (monitor.Result, error)) *mocks.DispatcherMock {
	return &mocks.DispatcherMock{
		DispatchFunc: func(_ context.Context, cmd monitor.Command) (monitor.Result, error) {
			return fn(cmd)
		},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
