package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/monitor/internal/config"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	dev := NewLoggerTo(&config.Config{Server: config.ServerConfig{Env: "development"}}, &buf)
	dev.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	prod := NewLoggerTo(&config.Config{Server: config.ServerConfig{Env: "production"}, LogLevel: "warn"}, &buf)
	prod.Info("dropped")
	assert.Empty(t, buf.String())
	prod.Warn("kept")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := &config.Config{DB: config.DBConfig{Driver: "memory"}}
	stores, err := OpenStores(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer stores.Close()

	raw, err := stores.Config.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", raw["min_bet_size"])
}

// TestNewServices_EndToEnd runs one market cycle against fake Polymarket and
// Telegram servers through the real clients.
func TestNewServices_EndToEnd(t *testing.T) {
	gamma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"1","slug":"ev","title":"Ev","active":true,"closed":false,"markets":[
			{"id":"11","conditionId":"0xabc","slug":"rain","question":"Will it rain?",
			 "outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.6\",\"0.4\"]","clobTokenIds":"[\"1\",\"2\"]","active":true}]}]`)
	}))
	defer gamma.Close()

	var mu sync.Mutex
	var sent []string
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		sent = append(sent, string(body))
		mu.Unlock()
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer tg.Close()

	cfg := &config.Config{
		Telegram: config.TelegramConfig{BotToken: "123:abc", ChatID: "-1", APIURL: tg.URL},
		Feed:     config.FeedConfig{GammaURL: gamma.URL, ClobURL: gamma.URL},
		Monitor:  config.MonitorConfig{EventLimit: 10, TradeLimit: 10},
	}
	stores := NewMemoryStores()
	svc := NewServices(cfg, stores, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := svc.Monitor.RunMarketCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewItemsFound)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.True(t, strings.Contains(sent[0], "0xabc"))
}
