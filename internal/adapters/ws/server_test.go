package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohanprasath-R/RMS/internal/adapters/ws"
	"github.com/Mohanprasath-R/RMS/internal/domain"
	"github.com/Mohanprasath-R/RMS/internal/monitor"
)

// stubBroker serves fixed data for every login.
type stubBroker struct {
	mu      sync.Mutex
	details map[string]any
}

func (s *stubBroker) Connected() bool { return true }

func (s *stubBroker) GetAccountDetails(context.Context, int) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.details, nil
}

func (s *stubBroker) GetOpenPositions(context.Context, int) ([]map[string]any, error) {
	return []map[string]any{{"symbol": "EURUSD", "Vol": 1.0, "Type": float64(0)}}, nil
}

func (s *stubBroker) GetClosedTrades(context.Context, int, time.Time) ([]map[string]any, error) {
	return nil, nil
}

func newTestEngine() *monitor.Engine {
	broker := &stubBroker{details: map[string]any{"balance": 500.0, "equity": 520.0, "margin": 100.0}}
	return monitor.New(monitor.Config{UpdateInterval: time.Hour}, broker, nil)
}

// dial connects a test subscriber and consumes the initial frame.
func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := readFrame(t, conn)
	require.Equal(t, "initial", f["type"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f map[string]any
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func sendCommand(t *testing.T, conn *websocket.Conn, cmd map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func TestInitialFrameOnConnect(t *testing.T) {
	engine := newTestEngine()
	engine.AddAccount(1001)
	engine.RunOnce(context.Background())

	server := ws.NewServer(engine, "127.0.0.1:0")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(t, "initial", f["type"])
	assert.NotEmpty(t, f["timestamp"])
	require.Contains(t, f, "data")
	data := f["data"].(map[string]any)
	assert.Contains(t, data, "1001")
	require.Contains(t, f, "stats")
}

func TestAddAndRemoveAccountCommands(t *testing.T) {
	engine := newTestEngine()
	server := ws.NewServer(engine, "127.0.0.1:0")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	sendCommand(t, conn, map[string]any{"type": "add_account", "login_id": 1001})
	f := readFrame(t, conn)
	assert.Equal(t, "success", f["type"])
	assert.True(t, engine.Monitors(1001))

	// login_id as a numeric string is accepted too
	sendCommand(t, conn, map[string]any{"type": "add_account", "login_id": "2002"})
	f = readFrame(t, conn)
	assert.Equal(t, "success", f["type"])
	assert.True(t, engine.Monitors(2002))

	sendCommand(t, conn, map[string]any{"type": "remove_account", "login_id": 1001})
	f = readFrame(t, conn)
	assert.Equal(t, "success", f["type"])
	assert.False(t, engine.Monitors(1001))
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	engine := newTestEngine()
	server := ws.NewServer(engine, "127.0.0.1:0")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := readFrame(t, conn)
	assert.Equal(t, "error", f["type"])

	// unknown command type also answers with an error frame
	sendCommand(t, conn, map[string]any{"type": "reboot"})
	f = readFrame(t, conn)
	assert.Equal(t, "error", f["type"])
	assert.Contains(t, f["message"], "reboot")

	// connection still serves queries
	sendCommand(t, conn, map[string]any{"type": "get_stats"})
	f = readFrame(t, conn)
	assert.Equal(t, "stats", f["type"])
}

func TestSnapshotAndExposureQueries(t *testing.T) {
	engine := newTestEngine()
	engine.AddAccount(1001)
	engine.RunOnce(context.Background())

	server := ws.NewServer(engine, "127.0.0.1:0")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	sendCommand(t, conn, map[string]any{"type": "get_snapshot", "login_id": 1001})
	f := readFrame(t, conn)
	require.Equal(t, "snapshot", f["type"])
	data := f["data"].(map[string]any)
	account := data["account"].(map[string]any)
	assert.Equal(t, float64(1001), account["login_id"])

	sendCommand(t, conn, map[string]any{"type": "get_exposure"})
	f = readFrame(t, conn)
	require.Equal(t, "exposure", f["type"])
	exposure := f["data"].(map[string]any)
	assert.Contains(t, exposure, "EURUSD")

	sendCommand(t, conn, map[string]any{"type": "get_exposure", "symbol": "eurusd"})
	f = readFrame(t, conn)
	require.Equal(t, "exposure", f["type"])
	assert.Equal(t, "EURUSD", f["symbol"])
	positions := f["positions"].([]any)
	require.Len(t, positions, 1)
	pos := positions[0].(map[string]any)
	assert.Equal(t, float64(1001), pos["login_id"])
}

func TestUnknownSnapshotIsEmptyNotError(t *testing.T) {
	engine := newTestEngine()
	server := ws.NewServer(engine, "127.0.0.1:0")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	conn := dial(t, ts)

	sendCommand(t, conn, map[string]any{"type": "get_snapshot", "login_id": 9999})
	f := readFrame(t, conn)
	assert.Equal(t, "snapshot", f["type"])
	assert.Nil(t, f["data"])
}

func TestBroadcastSurvivesSubscriberDisconnect(t *testing.T) {
	engine := newTestEngine()
	engine.AddAccount(1001)

	server := ws.NewServer(engine, "127.0.0.1:0")
	engine.AddObserver(server)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	stayer := dial(t, ts)
	leaver := dial(t, ts)
	require.Eventually(t, func() bool { return server.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	leaver.Close()
	require.Eventually(t, func() bool { return server.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	engine.RunOnce(context.Background())

	f := readFrame(t, stayer)
	require.Equal(t, "update", f["type"])

	raw, err := json.Marshal(f["data"])
	require.NoError(t, err)
	var frames []domain.AccountUpdate
	require.NoError(t, json.Unmarshal(raw, &frames))
	require.Len(t, frames, 1)
	assert.Equal(t, 1001, frames[0].Account.LoginID)
}
