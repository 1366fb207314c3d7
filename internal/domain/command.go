package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandKind tags the variant of a parsed chat command.
type CommandKind string

const (
	CmdStart   CommandKind = "start"
	CmdHelp    CommandKind = "help"
	CmdStatus  CommandKind = "status"
	CmdConfig  CommandKind = "config"
	CmdSetMin  CommandKind = "setmin"
	CmdMarkets CommandKind = "markets"
	CmdTrades  CommandKind = "trades"
	CmdMute    CommandKind = "mute"
	CmdUnmute  CommandKind = "unmute"
	CmdUnknown CommandKind = "unknown"
)

// Command is a parsed operator command. Only the fields relevant to Kind are
// populated. ParseErr carries a validation error for commands whose arguments
// were rejected; handlers must reply with usage text and not touch the store.
type Command struct {
	Kind        CommandKind
	Raw         string
	Args        []string
	Amount      int64  // SetMin
	ConditionID string // Mute, Unmute
	ParseErr    error
}

var commandKinds = map[string]CommandKind{
	"start":   CmdStart,
	"help":    CmdHelp,
	"status":  CmdStatus,
	"config":  CmdConfig,
	"setmin":  CmdSetMin,
	"markets": CmdMarkets,
	"trades":  CmdTrades,
	"mute":    CmdMute,
	"unmute":  CmdUnmute,
}

// ParseCommand turns raw chat text into a Command. A leading slash is optional
// and a Telegram bot suffix ("/setmin@MyBot") is stripped. Unrecognised input
// yields CmdUnknown rather than an error.
func ParseCommand(raw string) Command {
	cmd := Command{Kind: CmdUnknown, Raw: raw}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return cmd
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	kind, ok := commandKinds[strings.ToLower(name)]
	if !ok {
		return cmd
	}
	cmd.Kind = kind
	cmd.Args = fields[1:]

	switch kind {
	case CmdSetMin:
		cmd.Amount, cmd.ParseErr = parseAmount(cmd.Args)
	case CmdMute, CmdUnmute:
		if len(cmd.Args) < 1 || cmd.Args[0] == "" {
			cmd.ParseErr = fmt.Errorf("%w: condition id is required", ErrValidation)
		} else {
			cmd.ConditionID = cmd.Args[0]
		}
	}
	return cmd
}

// parseAmount accepts exactly one non-negative base-10 integer.
func parseAmount(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: amount is required", ErrValidation)
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrValidation, args[0])
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	return n, nil
}
