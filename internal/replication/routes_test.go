package replication_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"effects-server/internal/effect"
	"effects-server/internal/replication"
)

type testFeed struct {
	hub    *replication.Hub
	ledger *replication.Ledger
}

func (f *testFeed) Hub() *replication.Hub { return f.hub }

func (f *testFeed) Snapshot() ([]byte, error) { return replication.Encode(f.ledger.Snapshot()) }

type directory map[string]*testFeed

func (d directory) Feed(match string) (replication.Feed, bool) {
	f, ok := d[match]
	if !ok {
		return nil, false
	}
	return f, true
}

func newTestServer(t *testing.T) (*httptest.Server, *testFeed, *replication.Server) {
	t.Helper()
	feed := &testFeed{hub: replication.NewHub(nil), ledger: replication.NewLedger()}
	auth, err := replication.NewAuth(nil)
	require.NoError(t, err)
	srv := replication.NewServer(auth, directory{"arena": feed}, nil)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, feed, srv
}

func fetchToken(t *testing.T, base, match string) (string, int) {
	t.Helper()
	resp, err := http.Get(base + "/token?match=" + match)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode
	}
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["token"], resp.StatusCode
}

func readFrame(t *testing.T, conn *websocket.Conn) *replication.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	f, err := replication.Decode(data)
	require.NoError(t, err)
	return f
}

func TestObserverFeed(t *testing.T) {
	ts, feed, srv := newTestServer(t)
	feed.ledger.SharedAdded(effect.SharedData{ID: 1, AbilityLevel: 3})
	feed.ledger.Flush(1, 0.1, nil)

	token, status := fetchToken(t, ts.URL, "arena")
	require.Equal(t, http.StatusOK, status)
	_, status = fetchToken(t, ts.URL, "nowhere")
	assert.Equal(t, http.StatusNotFound, status)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readFrame(t, conn)
	assert.Equal(t, replication.FrameSnapshot, snap.Kind)
	require.Len(t, snap.SharedAdded, 1)
	assert.Equal(t, 3, snap.SharedAdded[0].AbilityLevel)
	assert.Equal(t, 1, feed.hub.ClientCount())
	assert.Equal(t, 1, srv.Limiter().TotalConns())

	feed.ledger.AddIndividual(individual(1, 4, 0))
	require.NoError(t, feed.ledger.Write(effect.Event{Kind: effect.EventActivated, ActivationKey: 4}))
	delta, err := replication.Encode(feed.ledger.Flush(2, 0.2, nil))
	require.NoError(t, err)
	feed.hub.Broadcast(delta)

	f := readFrame(t, conn)
	assert.Equal(t, replication.FrameDelta, f.Kind)
	assert.Equal(t, uint64(2), f.Tick)
	require.Len(t, f.IndividualAdded, 1)
	require.Len(t, f.Events, 1)
	assert.Equal(t, effect.EventActivated, f.Events[0].Kind)

	feed.hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, feed.hub.ClientCount())
	assert.Eventually(t, func() bool { return srv.Limiter().TotalConns() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestObserverFeedRejectsBadToken(t *testing.T) {
	ts, _, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLimiter(t *testing.T) {
	l := replication.NewLimiter()
	for range 5 {
		require.True(t, l.CanAccept("10.0.0.1"))
		l.TrackConnect("10.0.0.1")
	}
	assert.False(t, l.CanAccept("10.0.0.1"))
	assert.True(t, l.CanAccept("10.0.0.2"))
	l.TrackDisconnect("10.0.0.1")
	assert.True(t, l.CanAccept("10.0.0.1"))
	assert.Equal(t, 4, l.TotalConns())
}
