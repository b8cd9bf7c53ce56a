package monitor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

// ErrUnknownCommand is returned for input that names no command.
var ErrUnknownCommand = errors.New("unknown command")

// CommandResult side effects of a command besides the new settings.
type CommandResult struct {
	Message string
	Quit    bool
	Help    bool
}

// HelpText lists interactive commands.
const HelpText = `Interactive commands:
  h            show this help
  q            quit
  i <seconds>  change refresh interval
  s <key>      change sort order (pnl, roi, equity, days)
  t <n>        change number of top performers displayed
  e <amount>   set minimum equity filter (0 clears)
  r <percent>  set minimum ROI filter (0 clears)
  c            clear all filters`

// ApplyCommand parses one input line and returns the settings it produces. On error the
// returned settings equal current.
func ApplyCommand(line string, current Settings) (Settings, CommandResult, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return current, CommandResult{}, nil
	}

	cmd, args := fields[0], fields[1:]
	next := current

	arg := func(usage string) (string, error) {
		if len(args) != 1 {
			return "", errors.Errorf("usage: %s", usage)
		}
		return args[0], nil
	}

	switch cmd {
	case "h", "help":
		return current, CommandResult{Help: true, Message: HelpText}, nil

	case "q", "quit":
		return current, CommandResult{Quit: true, Message: "stopping monitor..."}, nil

	case "i":
		raw, err := arg("i <seconds>")
		if err != nil {
			return current, CommandResult{}, err
		}
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return current, CommandResult{}, errors.Errorf("invalid interval %q", raw)
		}
		next.Interval = time.Duration(secs) * time.Second
		return next, CommandResult{Message: fmt.Sprintf("refresh interval set to %ds", secs)}, nil

	case "s":
		raw, err := arg("s <pnl|roi|equity|days>")
		if err != nil {
			return current, CommandResult{}, err
		}
		key, ok := domain.ParseSortKey(raw)
		if !ok {
			return current, CommandResult{}, errors.Errorf("invalid sort option %q", raw)
		}
		next.SortBy = key
		return next, CommandResult{Message: fmt.Sprintf("sorting by %s", strings.ToUpper(key.String()))}, nil

	case "t":
		raw, err := arg("t <n>")
		if err != nil {
			return current, CommandResult{}, err
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return current, CommandResult{}, errors.Errorf("invalid number %q", raw)
		}
		next.Top = n
		return next, CommandResult{Message: fmt.Sprintf("showing top %d", n)}, nil

	case "e":
		raw, err := arg("e <amount>")
		if err != nil {
			return current, CommandResult{}, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return current, CommandResult{}, errors.Errorf("invalid equity value %q", raw)
		}
		if !v.IsPositive() {
			next.Filter.MinEquity = nil
			return next, CommandResult{Message: "min equity filter cleared"}, nil
		}
		next.Filter.MinEquity = &v
		return next, CommandResult{Message: fmt.Sprintf("min equity filter set to $%s", v.StringFixed(2))}, nil

	case "r":
		raw, err := arg("r <percent>")
		if err != nil {
			return current, CommandResult{}, err
		}
		v, err := decimal.NewFromString(strings.TrimSuffix(raw, "%"))
		if err != nil {
			return current, CommandResult{}, errors.Errorf("invalid ROI value %q", raw)
		}
		if !v.IsPositive() {
			next.Filter.MinROI = nil
			return next, CommandResult{Message: "min ROI filter cleared"}, nil
		}
		next.Filter.MinROI = &v
		return next, CommandResult{Message: fmt.Sprintf("min ROI filter set to %s%%", v.StringFixed(2))}, nil

	case "c":
		next.Filter.MinEquity = nil
		next.Filter.MinROI = nil
		return next, CommandResult{Message: "all filters cleared"}, nil
	}

	return current, CommandResult{}, errors.Wrapf(ErrUnknownCommand, "%q, press h for help", cmd)
}
