package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/polywatch/monitor/internal/domain"
	"github.com/shopspring/decimal"
)

// All renderers are pure: same input, same text. Output uses Telegram's
// legacy Markdown, so free text is escaped with EscapeMarkdown.

const timeLayout = "2006-01-02 15:04:05 UTC"

var hundred = decimal.NewFromInt(100)

var mdEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown escapes the characters legacy Markdown treats as entity
// delimiters.
func EscapeMarkdown(s string) string {
	return mdEscaper.Replace(s)
}

// ──────────────────────────────────────────────────────────────────────────────
// Alerts
// ──────────────────────────────────────────────────────────────────────────────

// FormatNewMarket renders the alert for a newly listed market.
func FormatNewMarket(m domain.Market) string {
	outcomes := "n/a"
	if len(m.Outcomes) > 0 {
		outcomes = EscapeMarkdown(strings.Join(m.Outcomes, ", "))
	}

	var b strings.Builder
	b.WriteString("🆕 *New market listed!*\n\n")
	fmt.Fprintf(&b, "📊 *%s*\n\n", EscapeMarkdown(m.Question))
	fmt.Fprintf(&b, "🔗 Slug: `%s`\n", m.Slug)
	fmt.Fprintf(&b, "🆔 Condition ID: `%s`\n", m.ConditionID)
	fmt.Fprintf(&b, "📈 Outcomes: %s\n", outcomes)
	if len(m.OutcomePrices) == len(m.Outcomes) && len(m.Outcomes) > 0 {
		prices := make([]string, 0, len(m.OutcomePrices))
		for i, p := range m.OutcomePrices {
			prices = append(prices, fmt.Sprintf("%s %s", EscapeMarkdown(m.Outcomes[i]), percent(p)))
		}
		fmt.Fprintf(&b, "💹 Prices: %s\n", strings.Join(prices, " / "))
	}
	fmt.Fprintf(&b, "\n🌐 [View market](%s)", m.URL())
	return b.String()
}

// FormatLargeTrade renders the alert for a trade at or above the threshold.
func FormatLargeTrade(t *domain.StoredTrade) string {
	var b strings.Builder
	b.WriteString("💰 *Large trade detected!*\n\n")
	fmt.Fprintf(&b, "📊 Market: `%s`\n", t.MarketConditionID)
	fmt.Fprintf(&b, "%s Side: *%s*\n", sideIcon(t.Side), t.Side)
	fmt.Fprintf(&b, "💵 Size: $%s\n", t.Size.StringFixed(2))
	fmt.Fprintf(&b, "📈 Price: %s%%\n", t.Price.Mul(hundred).StringFixed(2))
	fmt.Fprintf(&b, "💎 Value: $%s\n", t.Notional().StringFixed(2))
	fmt.Fprintf(&b, "⏰ Time: %s", t.Timestamp.UTC().Format(timeLayout))
	return b.String()
}

// ──────────────────────────────────────────────────────────────────────────────
// Command replies
// ──────────────────────────────────────────────────────────────────────────────

// FormatWelcome is the /start reply.
func FormatWelcome() string {
	return "🤖 *Welcome to the Polymarket Monitor Bot!*\n\n" +
		"I watch Polymarket for newly listed markets and large trades.\n\n" +
		"Send /help to see all commands."
}

// FormatHelp is the /help reply.
func FormatHelp() string {
	return "🤖 *Polymarket Monitor Bot help*\n\n" +
		"*Commands:*\n\n" +
		"/start - start the bot\n" +
		"/status - show monitoring status\n" +
		"/config - show the current configuration\n" +
		"/setmin <amount> - set the large trade threshold\n" +
		"/markets - list monitored markets\n" +
		"/trades - list recent large trades\n" +
		"/mute <condition id> - stop trade alerts for a market\n" +
		"/unmute <condition id> - resume trade alerts for a market\n" +
		"/help - show this message\n\n" +
		"*Features:*\n\n" +
		"• New market alerts\n" +
		"• Large trade alerts\n" +
		"• Adjustable alert threshold"
}

// StatusView is the data behind the /status reply.
type StatusView struct {
	MonitoredMarkets int64
	LargeTrades24h   int64
	Now              time.Time
}

// FormatStatus is the /status reply.
func FormatStatus(v StatusView) string {
	return fmt.Sprintf("📊 *Bot status*\n\n"+
		"✅ Status: online\n"+
		"📈 Monitored markets: %d\n"+
		"💰 Large trades (24h): %d\n"+
		"⏰ Updated: %s",
		v.MonitoredMarkets, v.LargeTrades24h, v.Now.UTC().Format(timeLayout))
}

// FormatConfig is the /config reply.
func FormatConfig(cfg domain.BotConfig) string {
	return fmt.Sprintf("⚙️ *Current configuration*\n\n"+
		"💰 Minimum trade size: $%d\n"+
		"🔔 Monitor all markets: %s\n"+
		"⏱️ Polling interval: %ss",
		cfg.MinBetSize,
		checkMark(cfg.MonitorAllMarkets),
		decimal.NewFromInt(cfg.PollingIntervalMS()).Div(decimal.NewFromInt(1000)).String())
}

// FormatMarketList is the /markets reply.
func FormatMarketList(markets []*domain.StoredMarket) string {
	if len(markets) == 0 {
		return "📊 No markets are being monitored."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Monitored markets* (latest %d)\n\n", len(markets))
	for i, m := range markets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, EscapeMarkdown(m.Question))
		fmt.Fprintf(&b, "   🔗 `%s`\n\n", m.Slug)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTradeList is the /trades reply.
func FormatTradeList(trades []*domain.StoredTrade) string {
	if len(trades) == 0 {
		return "💰 No large trades detected recently."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💰 *Recent large trades* (%d)\n\n", len(trades))
	for i, t := range trades {
		fmt.Fprintf(&b, "%d. %s $%s @ %s%%\n", i+1, sideIcon(t.Side), t.Size.StringFixed(2), t.Price.Mul(hundred).StringFixed(2))
		fmt.Fprintf(&b, "   💎 Value: $%s\n", t.Notional().StringFixed(2))
		fmt.Fprintf(&b, "   ⏰ %s\n\n", t.Timestamp.UTC().Format(timeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSetMinUsage is the reply to a /setmin with a bad or missing amount.
func FormatSetMinUsage() string {
	return "❌ Usage: /setmin <amount>\nExample: /setmin 2000\nThe amount must be a non-negative whole number."
}

// FormatSetMinDone confirms a threshold change.
func FormatSetMinDone(amount int64) string {
	return fmt.Sprintf("✅ Minimum trade size updated to $%d", amount)
}

// FormatMuteUsage is the reply to /mute or /unmute without a condition id.
func FormatMuteUsage(kind domain.CommandKind) string {
	return fmt.Sprintf("❌ Usage: /%s <condition id>", kind)
}

// FormatMuteDone confirms a monitored flag change.
func FormatMuteDone(m *domain.StoredMarket) string {
	if m.Monitored {
		return fmt.Sprintf("🔔 Trade alerts resumed for *%s*\n`%s`", EscapeMarkdown(m.Question), m.ConditionID)
	}
	return fmt.Sprintf("🔕 Trade alerts muted for *%s*\n`%s`", EscapeMarkdown(m.Question), m.ConditionID)
}

// FormatMarketNotFound is the reply when a condition id is unknown everywhere.
func FormatMarketNotFound(conditionID string) string {
	return fmt.Sprintf("❓ No market found for `%s`.", conditionID)
}

// FormatUnknownCommand is the reply to an unrecognised command.
func FormatUnknownCommand() string {
	return "❓ Unknown command. Send /help to see all commands."
}

// FormatNotAllowed is the reply when a non-admin chat tries to change settings.
func FormatNotAllowed() string {
	return "🚫 This command is only available in the alert chat."
}

// FormatError is the generic reply when a command could not complete.
func FormatError(action string) string {
	return fmt.Sprintf("❌ Failed to %s, please try again later.", action)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func sideIcon(s domain.Side) string {
	if s == domain.SideBuy {
		return "🟢"
	}
	return "🔴"
}

func checkMark(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

// percent renders a 0–1 probability string as a percentage. Unparseable input
// is shown as-is.
func percent(p string) string {
	d, err := decimal.NewFromString(p)
	if err != nil {
		return EscapeMarkdown(p)
	}
	return d.Mul(hundred).StringFixed(1) + "%"
}
