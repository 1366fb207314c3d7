package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/monitor/internal/domain"
)

func startHub(t *testing.T, secret []byte) (*Hub, string) {
	t.Helper()
	hub := NewHub(secret, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ConnectedCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, hub, 1)

	st := &domain.StoredTrade{
		TradeID:           "t-1",
		MarketConditionID: "0xabc",
		Side:              domain.SideBuy,
		Size:              decimal.NewFromInt(2000),
		Price:             decimal.RequireFromString("0.5"),
	}
	hub.BroadcastLargeTrade(LargeTradeMessageFrom(st, true, time.Now()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "large_trade", got["type"])
	assert.Equal(t, "t-1", got["trade_id"])
	assert.Equal(t, "1000", got["value"])
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_RequiresTokenWhenSecretSet(t *testing.T) {
	secret := []byte("dashboard-secret")
	hub, url := startHub(t, secret)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops"})
	badToken, err := bad.SignedString([]byte("other"))
	require.NoError(t, err)
	_, resp, err = websocket.DefaultDialer.Dial(url+"?token="+badToken, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	good := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ops", "exp": time.Now().Add(time.Hour).Unix()})
	token, err := good.SignedString(secret)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, hub, 1)
}

func TestNewMarketMessageFrom(t *testing.T) {
	m := domain.NewStoredMarket(domain.Market{ConditionID: "0xabc", Slug: "rain", Question: "Rain?"}, true, time.Now())
	msg := NewMarketMessageFrom(m, false, time.Now())
	assert.Equal(t, MsgTypeNewMarket, msg.Type)
	assert.Equal(t, "https://polymarket.com/event/rain", msg.URL)
	assert.False(t, msg.Notified)
}

func onlyClient(hub *Hub) *Client {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.clients {
		return c
	}
	return nil
}

func TestHub_SubscribeFiltersTopics(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteJSON(SubscribeRequest{Type: MsgTypeSubscribe, Topics: []MsgType{MsgTypeLargeTrade}}))
	require.Eventually(t, func() bool {
		c := onlyClient(hub)
		return c != nil && !c.wants(MsgTypeNewMarket)
	}, 2*time.Second, 10*time.Millisecond)

	m := domain.NewStoredMarket(domain.Market{ConditionID: "0xabc", Slug: "rain"}, true, time.Now())
	hub.BroadcastNewMarket(NewMarketMessageFrom(m, true, time.Now()))
	hub.BroadcastLargeTrade(LargeTradeMessageFrom(&domain.StoredTrade{TradeID: "t-9"}, true, time.Now()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "large_trade", got["type"])
	assert.Equal(t, "t-9", got["trade_id"])
}

func TestHub_BadRequestGetsErrorMessage(t *testing.T) {
	hub, url := startHub(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, hub, 1)

	cases := []struct {
		payload string
		code    string
	}{
		{`hello`, "BAD_REQUEST"},
		{`{"type":"subscribe","topics":["prices"]}`, "UNKNOWN_TOPIC"},
	}
	for _, tc := range cases {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.payload)))

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg ErrorMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MsgTypeError, msg.Type)
		assert.Equal(t, tc.code, msg.Code)
	}
	assert.True(t, onlyClient(hub).wants(MsgTypeNewMarket), "failed requests leave the subscription unchanged")
}
