package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/repository/memory"
	"github.com/polywatch/monitor/internal/service"
	"github.com/polywatch/monitor/internal/telegram"
)

type commandFixture struct {
	markets  *memory.MarketRepository
	trades   *memory.TradeRepository
	config   *memory.ConfigRepository
	feed     *fakeFeed
	notifier *fakeNotifier
	guard    *fakeGuard
	metrics  *metrics.Metrics
	svc      *service.CommandService
}

func newCommandFixture(adminChat string) *commandFixture {
	f := &commandFixture{
		markets:  memory.NewMarketRepository(),
		trades:   memory.NewTradeRepository(),
		config:   memory.NewConfigRepository(),
		feed:     &fakeFeed{markets: map[string]domain.Market{}},
		notifier: &fakeNotifier{},
		guard:    &fakeGuard{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.svc = service.NewCommandService(f.markets, f.trades, f.config, f.notifier, service.CommandOptions{
		Lookup:      f.feed,
		Guard:       f.guard,
		AdminChatID: adminChat,
		Metrics:     f.metrics,
	}, quietLogger())
	return f
}

func (f *commandFixture) run(t *testing.T, text string) string {
	t.Helper()
	return f.svc.Execute(context.Background(), domain.ParseCommand(text), alertChat)
}

func TestExecute_StaticReplies(t *testing.T) {
	f := newCommandFixture("")
	assert.Equal(t, telegram.FormatWelcome(), f.run(t, "/start"))
	assert.Equal(t, telegram.FormatHelp(), f.run(t, "/help"))
	assert.Equal(t, telegram.FormatUnknownCommand(), f.run(t, "/frobnicate"))
	assert.Equal(t, telegram.FormatHelp(), f.run(t, "/help@PolyWatchBot"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CommandsTotal.WithLabelValues("help")))
}

func TestExecute_Status(t *testing.T) {
	f := newCommandFixture("")
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.markets.Insert(ctx, domain.NewStoredMarket(market("0x1", "A?"), true, now)))
	require.NoError(t, f.markets.Insert(ctx, domain.NewStoredMarket(market("0x2", "B?"), false, now)))
	require.NoError(t, f.trades.Insert(ctx, domain.NewStoredTrade(trade("t1", "0x1", "5000", "0.5"), now)))
	require.NoError(t, f.trades.Insert(ctx, domain.NewStoredTrade(trade("t2", "0x1", "5000", "0.5"), now.Add(-48*time.Hour))))

	reply := f.run(t, "/status")
	assert.Contains(t, reply, "Monitored markets: 1")
	assert.Contains(t, reply, "Large trades (24h): 1")
}

func TestExecute_ConfigShowsDefaults(t *testing.T) {
	f := newCommandFixture("")
	assert.Equal(t, telegram.FormatConfig(domain.DefaultBotConfig()), f.run(t, "/config"))
}

func TestExecute_SetMin(t *testing.T) {
	f := newCommandFixture("")
	ctx := context.Background()

	assert.Equal(t, telegram.FormatSetMinDone(2500), f.run(t, "/setmin 2500"))
	raw, err := f.config.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2500", raw[domain.ConfigKeyMinBetSize])

	f.run(t, "/setmin 0")
	raw, _ = f.config.GetAll(ctx)
	assert.Equal(t, "0", raw[domain.ConfigKeyMinBetSize])
}

func TestExecute_SetMinRejectsBadInput(t *testing.T) {
	f := newCommandFixture("")
	require.NoError(t, f.config.Set(context.Background(), domain.ConfigKeyMinBetSize, "1500"))

	for _, text := range []string{"/setmin abc", "/setmin", "/setmin -5", "/setmin 1.5"} {
		t.Run(text, func(t *testing.T) {
			assert.Equal(t, telegram.FormatSetMinUsage(), f.run(t, text))
		})
	}

	reply := f.run(t, "/config")
	assert.Contains(t, reply, "$1500")
}

func TestExecute_StoreErrorsBecomeReplies(t *testing.T) {
	svc := service.NewCommandService(memory.NewMarketRepository(), memory.NewTradeRepository(),
		brokenConfigRepo{}, &fakeNotifier{}, service.CommandOptions{}, quietLogger())

	reply := svc.Execute(context.Background(), domain.ParseCommand("/config"), alertChat)
	assert.Equal(t, telegram.FormatError("fetch the configuration"), reply)

	reply = svc.Execute(context.Background(), domain.ParseCommand("/setmin 10"), alertChat)
	assert.Equal(t, telegram.FormatError("update the configuration"), reply)
}

func TestExecute_Lists(t *testing.T) {
	f := newCommandFixture("")
	ctx := context.Background()

	assert.Equal(t, telegram.FormatMarketList(nil), f.run(t, "/markets"))
	assert.Equal(t, telegram.FormatTradeList(nil), f.run(t, "/trades"))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		m := market(string(rune('a'+i)), "Question?")
		require.NoError(t, f.markets.Insert(ctx, domain.NewStoredMarket(m, true, base.Add(time.Duration(i)*time.Minute))))
	}
	for i := 0; i < 7; i++ {
		tr := trade(string(rune('a'+i)), "0x1", "5000", "0.5")
		require.NoError(t, f.trades.Insert(ctx, domain.NewStoredTrade(tr, base)))
	}

	assert.Contains(t, f.run(t, "/markets"), "(latest 10)")
	assert.Contains(t, f.run(t, "/trades"), "(5)")
}

func TestExecute_MuteAndUnmuteStoredMarket(t *testing.T) {
	f := newCommandFixture("")
	ctx := context.Background()
	require.NoError(t, f.markets.Insert(ctx, domain.NewStoredMarket(market("0xabc", "Rain?"), true, testNow)))

	reply := f.run(t, "/mute 0xabc")
	assert.Contains(t, reply, "muted")
	m, err := f.markets.GetByConditionID(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, m.Monitored)

	reply = f.run(t, "/unmute 0xabc")
	assert.Contains(t, reply, "resumed")
	m, err = f.markets.GetByConditionID(ctx, "0xabc")
	require.NoError(t, err)
	assert.True(t, m.Monitored)
	assert.Zero(t, f.feed.lookups)
}

func TestExecute_MuteUnknownMarketIsFetchedUpstream(t *testing.T) {
	f := newCommandFixture("")
	f.feed.markets["0xnew"] = market("0xnew", "Snow?")

	reply := f.run(t, "/mute 0xnew")
	assert.Contains(t, reply, "muted")

	m, err := f.markets.GetByConditionID(context.Background(), "0xnew")
	require.NoError(t, err)
	assert.False(t, m.Monitored)
	assert.Equal(t, "Snow?", m.Question)
}

func TestExecute_MuteMissingEverywhere(t *testing.T) {
	f := newCommandFixture("")
	assert.Equal(t, telegram.FormatMarketNotFound("0xnope"), f.run(t, "/mute 0xnope"))
	assert.Zero(t, f.markets.Len())
}

func TestExecute_MuteUsage(t *testing.T) {
	f := newCommandFixture("")
	assert.Equal(t, telegram.FormatMuteUsage(domain.CmdMute), f.run(t, "/mute"))
}

func TestExecute_MutatingCommandsRestrictedToAdminChat(t *testing.T) {
	f := newCommandFixture("-100999")
	ctx := context.Background()

	reply := f.svc.Execute(ctx, domain.ParseCommand("/setmin 5"), "42")
	assert.Equal(t, telegram.FormatNotAllowed(), reply)
	raw, _ := f.config.GetAll(ctx)
	assert.Equal(t, "1000", raw[domain.ConfigKeyMinBetSize])

	reply = f.svc.Execute(ctx, domain.ParseCommand("/setmin 5"), "-100999")
	assert.Equal(t, telegram.FormatSetMinDone(5), reply)

	// Read-only commands work from anywhere.
	assert.Equal(t, telegram.FormatHelp(), f.svc.Execute(ctx, domain.ParseCommand("/help"), "42"))
}

// ──────────────────────────────────────────────────────────────────────────────
// HandleUpdate
// ──────────────────────────────────────────────────────────────────────────────

func commandUpdate(id int64, chat int64, text string) *telegram.Update {
	return &telegram.Update{Update: tgbotapi.Update{
		UpdateID: int(id),
		Message:  &tgbotapi.Message{MessageID: int(id), Chat: &tgbotapi.Chat{ID: chat}, Text: text},
	}}
}

func TestHandleUpdate_RepliesToOriginatingChat(t *testing.T) {
	f := newCommandFixture("")

	require.NoError(t, f.svc.HandleUpdate(context.Background(), commandUpdate(1, 777, "/help")))

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "777", sent[0].ChatID)
	assert.Equal(t, telegram.FormatHelp(), sent[0].Text)
	assert.Equal(t, telegram.ParseModeMarkdown, sent[0].Mode)
}

func TestHandleUpdate_IgnoresReplaysAndPlainText(t *testing.T) {
	f := newCommandFixture("")
	ctx := context.Background()

	require.NoError(t, f.svc.HandleUpdate(ctx, commandUpdate(1, 777, "/start")))
	require.NoError(t, f.svc.HandleUpdate(ctx, commandUpdate(1, 777, "/start")))
	require.NoError(t, f.svc.HandleUpdate(ctx, commandUpdate(2, 777, "hello there")))
	require.NoError(t, f.svc.HandleUpdate(ctx, &telegram.Update{Update: tgbotapi.Update{UpdateID: 3}}))

	assert.Len(t, f.notifier.Sent(), 1)
}

func TestHandleUpdate_GuardOutageStillAnswers(t *testing.T) {
	f := newCommandFixture("")
	f.guard.err = errors.New("redis down")

	require.NoError(t, f.svc.HandleUpdate(context.Background(), commandUpdate(1, 777, "/help")))
	assert.Len(t, f.notifier.Sent(), 1)
}

func TestHandleUpdate_SendFailureIsReturned(t *testing.T) {
	f := newCommandFixture("")
	f.notifier.err = errors.New("telegram 400")

	err := f.svc.HandleUpdate(context.Background(), commandUpdate(1, 777, "/help"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "777")
}
