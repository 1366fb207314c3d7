package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/polywatch/monitor/internal/metrics"
	"github.com/polywatch/monitor/internal/telegram"
)

const (
	marketsListLimit = 10
	tradesListLimit  = 5
	statusWindow     = 24 * time.Hour
)

// CommandService answers operator chat commands. Every handler returns reply
// text; store errors turn into an error reply, never a dropped message.
type CommandService struct {
	markets  MarketRepo
	trades   TradeRepo
	config   ConfigRepo
	lookup   MarketLookup
	notifier Notifier
	guard    UpdateGuard
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// adminChatID, when set, is the only chat allowed to change state.
	adminChatID string
	now         func() time.Time
}

// CommandOptions configures optional collaborators. Any field may be zero.
type CommandOptions struct {
	Lookup      MarketLookup
	Guard       UpdateGuard
	AdminChatID string
	Metrics     *metrics.Metrics
}

// NewCommandService creates a CommandService.
func NewCommandService(
	markets MarketRepo,
	trades TradeRepo,
	config ConfigRepo,
	notifier Notifier,
	opts CommandOptions,
	logger *slog.Logger,
) *CommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandService{
		markets:     markets,
		trades:      trades,
		config:      config,
		lookup:      opts.Lookup,
		notifier:    notifier,
		guard:       opts.Guard,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "commands"),
		adminChatID: opts.AdminChatID,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Inbound updates
// ──────────────────────────────────────────────────────────────────────────────

// HandleUpdate runs the command in a webhook update and sends the reply to the
// originating chat. Non-command updates and replays are ignored. The returned
// error is only for logging; the webhook acknowledges regardless.
func (s *CommandService) HandleUpdate(ctx context.Context, u *telegram.Update) error {
	text, ok := u.CommandText()
	if !ok {
		return nil
	}

	if s.guard != nil {
		first, err := s.guard.FirstSeen(ctx, u.ID())
		if err != nil {
			// Guard outage must not silence the bot; run the command anyway.
			s.logger.Warn("update_guard_failed", "update_id", u.ID(), "err", err)
		} else if !first {
			return nil
		}
	}

	chatID := u.ChatID()
	reply := s.Execute(ctx, domain.ParseCommand(text), chatID)
	if err := s.notifier.SendMessage(ctx, chatID, reply, telegram.ParseModeMarkdown); err != nil {
		return fmt.Errorf("command reply to chat %s: %w", chatID, err)
	}
	return nil
}

// Execute runs one parsed command on behalf of chatID and returns the reply.
func (s *CommandService) Execute(ctx context.Context, cmd domain.Command, chatID string) string {
	s.metrics.RecordCommand(string(cmd.Kind))
	s.logger.Info("command_received", "kind", cmd.Kind, "chat_id", chatID)

	switch cmd.Kind {
	case domain.CmdStart:
		return telegram.FormatWelcome()
	case domain.CmdHelp:
		return telegram.FormatHelp()
	case domain.CmdStatus:
		return s.status(ctx)
	case domain.CmdConfig:
		return s.showConfig(ctx)
	case domain.CmdSetMin:
		if !s.mayMutate(chatID) {
			return telegram.FormatNotAllowed()
		}
		return s.setMin(ctx, cmd)
	case domain.CmdMarkets:
		return s.listMarkets(ctx)
	case domain.CmdTrades:
		return s.listTrades(ctx)
	case domain.CmdMute, domain.CmdUnmute:
		if !s.mayMutate(chatID) {
			return telegram.FormatNotAllowed()
		}
		return s.setMonitored(ctx, cmd)
	case domain.CmdUnknown:
		return telegram.FormatUnknownCommand()
	default:
		return telegram.FormatUnknownCommand()
	}
}

func (s *CommandService) mayMutate(chatID string) bool {
	return s.adminChatID == "" || s.adminChatID == chatID
}

// ──────────────────────────────────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────────────────────────────────

func (s *CommandService) status(ctx context.Context) string {
	monitored, err := s.markets.CountMonitored(ctx)
	if err != nil {
		s.logger.Error("status_count_markets_failed", "err", err)
		return telegram.FormatError("fetch status")
	}
	now := s.now()
	recent, err := s.trades.CountSince(ctx, now.Add(-statusWindow))
	if err != nil {
		s.logger.Error("status_count_trades_failed", "err", err)
		return telegram.FormatError("fetch status")
	}
	return telegram.FormatStatus(telegram.StatusView{
		MonitoredMarkets: monitored,
		LargeTrades24h:   recent,
		Now:              now,
	})
}

func (s *CommandService) showConfig(ctx context.Context) string {
	raw, err := s.config.GetAll(ctx)
	if err != nil {
		s.logger.Error("config_read_failed", "err", err)
		return telegram.FormatError("fetch the configuration")
	}
	return telegram.FormatConfig(domain.ParseBotConfig(raw))
}

func (s *CommandService) setMin(ctx context.Context, cmd domain.Command) string {
	if cmd.ParseErr != nil {
		return telegram.FormatSetMinUsage()
	}
	if err := s.config.Set(ctx, domain.ConfigKeyMinBetSize, strconv.FormatInt(cmd.Amount, 10)); err != nil {
		s.logger.Error("config_write_failed", "key", domain.ConfigKeyMinBetSize, "err", err)
		return telegram.FormatError("update the configuration")
	}
	s.logger.Info("min_bet_size_updated", "value", cmd.Amount)
	return telegram.FormatSetMinDone(cmd.Amount)
}

func (s *CommandService) listMarkets(ctx context.Context) string {
	markets, err := s.markets.ListRecentMonitored(ctx, marketsListLimit)
	if err != nil {
		s.logger.Error("list_markets_failed", "err", err)
		return telegram.FormatError("fetch the market list")
	}
	return telegram.FormatMarketList(markets)
}

func (s *CommandService) listTrades(ctx context.Context) string {
	trades, err := s.trades.ListRecent(ctx, tradesListLimit)
	if err != nil {
		s.logger.Error("list_trades_failed", "err", err)
		return telegram.FormatError("fetch recent trades")
	}
	return telegram.FormatTradeList(trades)
}

// setMonitored toggles the monitored flag. A market the store has never seen
// is looked up upstream and stored with the requested flag.
func (s *CommandService) setMonitored(ctx context.Context, cmd domain.Command) string {
	if cmd.ParseErr != nil {
		return telegram.FormatMuteUsage(cmd.Kind)
	}
	monitored := cmd.Kind == domain.CmdUnmute

	err := s.markets.SetMonitored(ctx, cmd.ConditionID, monitored)
	if domain.IsNotFound(err) {
		err = s.trackUnknownMarket(ctx, cmd.ConditionID, monitored)
		if domain.IsNotFound(err) {
			return telegram.FormatMarketNotFound(cmd.ConditionID)
		}
	}
	if err != nil {
		s.logger.Error("set_monitored_failed", "condition_id", cmd.ConditionID, "err", err)
		return telegram.FormatError("update the market")
	}

	m, err := s.markets.GetByConditionID(ctx, cmd.ConditionID)
	if err != nil {
		s.logger.Error("set_monitored_reload_failed", "condition_id", cmd.ConditionID, "err", err)
		return telegram.FormatError("update the market")
	}
	s.logger.Info("market_monitored_changed", "condition_id", cmd.ConditionID, "monitored", monitored)
	return telegram.FormatMuteDone(m)
}

func (s *CommandService) trackUnknownMarket(ctx context.Context, conditionID string, monitored bool) error {
	if s.lookup == nil {
		return domain.ErrNotFound
	}
	m, err := s.lookup.GetMarketByConditionID(ctx, conditionID)
	if err != nil {
		return err
	}

	err = s.markets.Insert(ctx, domain.NewStoredMarket(*m, monitored, s.now()))
	if domain.IsConflict(err) {
		// A market cycle stored it in the meantime.
		return s.markets.SetMonitored(ctx, conditionID, monitored)
	}
	return err
}
