package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davebot/dave/internal/models"
)

func startTestServer(t *testing.T) (*Server, *Channel) {
	t.Helper()
	ch := NewChannel()
	srv := NewServer(ch, nil)
	srv.pollTimeout = 100 * time.Millisecond

	_, err := srv.Start(0)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		// Servers in consecutive tests bind the same port; drop pooled
		// keep-alive connections so the next test cannot reuse a dead one.
		http.DefaultClient.CloseIdleConnections()
	})
	return srv, ch
}

func TestServer_ServesApprovalPage(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestServer_StatusLongPoll(t *testing.T) {
	srv, ch := startTestServer(t)
	statusURL := srv.URL() + "status"

	// Empty feed: 204 after the poll window.
	resp, err := http.Get(statusURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// One event: 200 with exactly that event.
	ch.Publish(models.Event{Status: models.EventWriting, FilePath: "a.go"})

	resp, err = http.Get(statusURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var event models.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&event))
	assert.Equal(t, models.EventWriting, event.Status)
	assert.Equal(t, "a.go", event.FilePath)
}

func TestServer_StatusDeliversInOrder(t *testing.T) {
	srv, ch := startTestServer(t)
	statusURL := srv.URL() + "status"

	for i := 1; i <= 3; i++ {
		ch.Publish(models.Event{Message: fmt.Sprintf("e%d", i)})
	}

	var got []string
	for i := 0; i < 3; i++ {
		resp, err := http.Get(statusURL)
		require.NoError(t, err)
		var event models.Event
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&event))
		resp.Body.Close()
		got = append(got, event.Message)
	}
	assert.Equal(t, []string{"e1", "e2", "e3"}, got)
}

func TestServer_PostDecisionRoutes(t *testing.T) {
	srv, ch := startTestServer(t)

	body := bytes.NewBufferString(`{"feedback": "tighten the plan"}`)
	resp, err := http.Post(srv.URL()+"feedback", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	d, err := ch.WaitForDecision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionFeedback, d.Kind)
	assert.Equal(t, "tighten the plan", d.Text)
}

func TestServer_RejectsMalformedPayload(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Post(srv.URL()+"feedback", "application/json",
		bytes.NewBufferString(`{"feedback": ""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL()+"resume_run", "application/json",
		bytes.NewBufferString(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DuplicateDecisionIsAccepted(t *testing.T) {
	srv, ch := startTestServer(t)

	resp, err := http.Post(srv.URL()+"approve", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	// The duplicate still gets a 200 so the browser shows no error, but the
	// first decision is the one observed.
	resp, err = http.Post(srv.URL()+"reject", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	d, err := ch.WaitForDecision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApprove, d.Kind)
}

func TestServer_PortProbing(t *testing.T) {
	first, _ := startTestServer(t)

	// Second server asked for the same port must fall through to the next.
	ch := NewChannel()
	second := NewServer(ch, nil)
	port, err := second.Start(first.Port())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = second.Shutdown(ctx)
	})

	assert.Greater(t, port, first.Port())
}
