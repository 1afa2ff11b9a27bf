package certstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lrx-radar/internal/config"
	"lrx-radar/internal/domain/services"
	"lrx-radar/pkg/logger"
)

type discardQueue struct{}

func (discardQueue) Push(context.Context, any) error { return nil }

// flakyStream accepts every websocket upgrade and immediately drops the
// connection, counting the dials it served.
func flakyStream(t *testing.T, dials *atomic.Int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		conn.Close()
	}))
}

func newTestClient(wsURL string) *Client {
	cfg := config.CertStreamConfig{
		Enabled:             true,
		WSURL:               "ws" + strings.TrimPrefix(wsURL, "http"),
		ReconnectMaxBackoff: time.Second,
	}
	matcher := services.NewBrandMatcher([]string{"paypal"}, 0.78, false)
	return NewClient(cfg, matcher, discardQueue{}, logger.NewDevelopment())
}

func TestConsumeReportsDialOutcome(t *testing.T) {
	var dials atomic.Int64
	srv := flakyStream(t, &dials)

	c := newTestClient(srv.URL)
	emitted := 0

	done, connected, err := c.consume(context.Background(), false, 0, &emitted)
	assert.False(t, done)
	assert.True(t, connected, "a successful dial must be reported even when the read fails")
	assert.Error(t, err)

	srv.Close()
	done, connected, err = c.consume(context.Background(), false, 0, &emitted)
	assert.False(t, done)
	assert.False(t, connected)
	assert.Error(t, err)
}

func TestRunResetsBackoffAfterReconnect(t *testing.T) {
	var dials atomic.Int64
	srv := flakyStream(t, &dials)
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.backoffStart = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, false, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Every dial succeeds, so the gap between attempts stays at the
	// starting backoff instead of doubling toward the cap. Doubling
	// from 5ms would allow at most 7 dials in this window.
	assert.GreaterOrEqual(t, dials.Load(), int64(15))
}
