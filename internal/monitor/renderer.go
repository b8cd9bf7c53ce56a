package monitor

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/internal/services/alerts"
	"github.com/vadiminshakov/vaultboard/pkg/indicators"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	topStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	footerStyle = lipgloss.NewStyle().Foreground(subtle)

	medals = []string{"🥇", "🥈", "🥉"}
)

const clearScreen = "\033[H\033[2J"

// View everything shown for one cycle.
type View struct {
	Vault          domain.Vault
	TotalFollowers int
	// Matching number of followers passing the filters.
	Matching  int
	TVL       decimal.Decimal
	Trend     *indicators.Reading
	Settings  Settings
	Entries   []domain.RankedFollower
	Alerts    []alerts.Alert
	UpdatedAt time.Time
	Rounds    int
	Cached    int
	New       int
}

// Renderer writes leaderboards and reports to a terminal.
type Renderer struct {
	out   io.Writer
	clear bool
}

// NewRenderer creates a Renderer. With clear set every leaderboard starts on a fresh screen.
func NewRenderer(out io.Writer, clear bool) *Renderer {
	return &Renderer{out: out, clear: clear}
}

// Leaderboard renders the vault summary, alerts and ranked entries.
func (r *Renderer) Leaderboard(v View, live bool) {
	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}

	title := "HYPERLIQUID VAULT LEADERBOARD"
	if live {
		title += " - LIVE MONITOR"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	name := v.Vault.Name
	if name == "" {
		name = "N/A"
	}
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
	}
	line("Vault:", lipgloss.NewStyle().Bold(true).Render(name))
	line("Address:", cyanStyle.Render(v.Vault.VaultAddress))
	if v.Vault.Leader != "" {
		line("Leader:", v.Vault.Leader)
	}
	line("APR:", formatPercent(decimal.NewFromFloat(v.Vault.APR*100)))
	line("TVL:", formatUSD(v.TVL)+trendSuffix(v.Trend))
	line("Updated:", fmt.Sprintf("%s | Sorting: %s",
		yellowStyle.Render(v.UpdatedAt.Format("2006-01-02 15:04:05")),
		strings.ToUpper(v.Settings.SortBy.String())))
	line("Followers:", fmt.Sprintf("%d total | %d matching | showing %d",
		v.TotalFollowers, v.Matching, len(v.Entries)))
	if filters := describeFilters(v.Settings); filters != "" {
		line("Filters:", filters)
	}
	if v.Settings.Alerts.Enabled() {
		line("Alerts on:", describeAlerts(v.Settings.Alerts))
	}
	if v.Rounds > 0 {
		line("Session:", fmt.Sprintf("%d requests, %d cached, %d new", v.Rounds, v.Cached, v.New))
	}

	if len(v.Alerts) > 0 {
		b.WriteString("\n")
		for _, a := range v.Alerts {
			fmt.Fprintf(&b, "%s %s\n", alertStyle.Render("ALERT"), a.String())
		}
	}

	b.WriteString("\n")
	if len(v.Entries) == 0 {
		b.WriteString("No followers match the current filters.\n")
	} else {
		b.WriteString(entriesTable(v.Entries))
		b.WriteString("\n")
	}

	if live {
		b.WriteString(footerStyle.Render("Press 'h' + Enter for help | 'q' + Enter to quit | Ctrl+C to stop"))
		b.WriteString("\n")
	}

	fmt.Fprint(r.out, b.String())
}

// Portfolio renders a user's performance periods and vault deposits.
func (r *Renderer) Portfolio(user string, periods []domain.PortfolioPeriod, equities []domain.UserVaultEquity) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("USER PORTFOLIO"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("User:"), cyanStyle.Render(user))

	if len(periods) == 0 {
		b.WriteString("No portfolio data available\n")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
			Headers("PERIOD", "VOLUME", "LATEST PNL", "ACCOUNT VALUE")
		for _, p := range periods {
			pnl, value := "N/A", "N/A"
			if p.HasHistory {
				pnl = colorSigned(p.LatestPnl, formatUSD(p.LatestPnl))
				value = formatUSD(p.LatestAccountValue)
			}
			t.Row(p.Name, formatUSD(p.Volume), pnl, value)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(equities) == 0 {
		b.WriteString("No vault deposits\n")
	} else {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
			Headers("VAULT", "EQUITY", "LOCKED UNTIL")
		for _, e := range equities {
			locked := "-"
			if e.LockedUntilTimestamp > 0 {
				locked = time.UnixMilli(e.LockedUntilTimestamp).UTC().Format("2006-01-02 15:04")
			}
			t.Row(e.VaultAddress, formatUSD(e.Equity), locked)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	fmt.Fprint(r.out, b.String())
}

// Notice prints a single status line.
func (r *Renderer) Notice(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func entriesTable(entries []domain.RankedFollower) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(subtle)).
		Headers("RANK", "USER", "EQUITY", "PNL", "ALL-TIME PNL", "ROI", "DAYS")

	for _, e := range entries {
		rank := strconv.Itoa(e.Rank) + "."
		user := domain.ShortAddress(e.User)
		if e.Rank >= 1 && e.Rank <= len(medals) {
			rank = topStyle.Render(medals[e.Rank-1] + " " + rank)
			user = topStyle.Render(user)
		}

		roi := "N/A"
		if e.VaultEquity.IsPositive() {
			roi = colorSigned(e.ROI, formatPercent(e.ROI))
		}

		t.Row(
			rank,
			user,
			formatUSD(e.VaultEquity),
			colorSigned(e.Pnl, formatUSD(e.Pnl)),
			colorSigned(e.AllTimePnl, formatUSD(e.AllTimePnl)),
			roi,
			strconv.Itoa(e.DaysFollowing),
		)
	}

	return t.String()
}

func colorSigned(v decimal.Decimal, text string) string {
	if v.IsNegative() {
		return lossStyle.Render(text)
	}
	return profitStyle.Render(text)
}

func trendSuffix(reading *indicators.Reading) string {
	if reading == nil {
		return ""
	}
	arrow := "↓"
	if reading.Rising() {
		arrow = "↑"
	}
	s := fmt.Sprintf(" (EMA %s %s", formatUSD(reading.EMA), arrow)
	if reading.HasRSI {
		s += ", RSI " + reading.RSI.StringFixed(1)
	}
	return s + ")"
}

func describeFilters(s Settings) string {
	if s.Filter.IsZero() {
		return ""
	}
	var parts []string
	if s.Filter.MinEquity != nil {
		parts = append(parts, "equity >= "+formatUSD(*s.Filter.MinEquity))
	}
	if s.Filter.MinROI != nil {
		parts = append(parts, "ROI >= "+formatPercent(*s.Filter.MinROI))
	}
	return strings.Join(parts, ", ")
}

func describeAlerts(th alerts.Thresholds) string {
	var parts []string
	if th.PnlAbove != nil {
		parts = append(parts, "PnL > "+formatUSD(*th.PnlAbove))
	}
	if th.PnlBelow != nil {
		parts = append(parts, "PnL < "+formatUSD(*th.PnlBelow))
	}
	if th.TVLAbove != nil {
		parts = append(parts, "TVL > "+formatUSD(*th.TVLAbove))
	}
	return strings.Join(parts, ", ")
}
