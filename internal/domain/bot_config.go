package domain

import (
	"strconv"
	"time"
)

// Keys of the bot_config table.
const (
	ConfigKeyMinBetSize        = "min_bet_size"
	ConfigKeyMonitorAllMarkets = "monitor_all_markets"
	ConfigKeyPollingInterval   = "polling_interval"
)

// Defaults applied when a key is missing or corrupted. A zero threshold would
// turn every trade into an alert, so the threshold never defaults to zero.
const (
	DefaultMinBetSize        int64 = 1000
	DefaultMonitorAllMarkets       = false
	DefaultPollingIntervalMS int64 = 5000
)

// BotConfig is the operator-tunable runtime configuration. It is read from the
// store at the start of every cycle and every command; nothing caches it.
type BotConfig struct {
	MinBetSize        int64         `json:"min_bet_size"`
	MonitorAllMarkets bool          `json:"monitor_all_markets"`
	PollingInterval   time.Duration `json:"polling_interval"`
}

// DefaultBotConfig returns the configuration used for an empty store.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MinBetSize:        DefaultMinBetSize,
		MonitorAllMarkets: DefaultMonitorAllMarkets,
		PollingInterval:   time.Duration(DefaultPollingIntervalMS) * time.Millisecond,
	}
}

// ParseBotConfig builds a BotConfig from raw key/value rows, falling back to
// the defaults for every missing or unparseable entry.
func ParseBotConfig(raw map[string]string) BotConfig {
	cfg := DefaultBotConfig()

	if v, ok := raw[ConfigKeyMinBetSize]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.MinBetSize = n
		}
	}
	if v, ok := raw[ConfigKeyMonitorAllMarkets]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MonitorAllMarkets = b
		}
	}
	if v, ok := raw[ConfigKeyPollingInterval]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.PollingInterval = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}

// PollingIntervalMS returns the polling interval in milliseconds, the unit it
// is stored in.
func (c BotConfig) PollingIntervalMS() int64 {
	return c.PollingInterval.Milliseconds()
}
