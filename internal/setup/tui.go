package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/config"
	"github.com/vadiminshakov/vaultboard/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

const wizardTitle = "VAULTBOARD CONFIG WIZARD"

func step(title string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render(wizardTitle))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	defaults := config.Defaults()

	var (
		vault       = defaults.Vault
		mode        = string(config.ModeLive)
		interval    = defaults.RefreshInterval
		target      = defaults.TargetFollowers
		top         = defaults.Top
		sortBy      = defaults.SortBy
		minEquity   string
		minROI      string
		pnlAbove    string
		pnlBelow    string
		tvlAbove    string
		webAddr     = defaults.WebAddr
		interactive = true
		confirm     bool
	)

	// step 1: welcome
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(wizardTitle))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's point the leaderboard at a vault.\n"))

	fmt.Println(stepStyle.Render("STEP 1: VAULT"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vault address").
				Description("0x-prefixed, 40 hex characters (default: HLP)").
				Value(&vault).
				Validate(validateAddress),
			huh.NewSelect[string]().
				Title("Mode").
				Options(
					huh.NewOption("Single snapshot", string(config.ModeOnce)),
					huh.NewOption("Live terminal monitor", string(config.ModeLive)),
					huh.NewOption("Web dashboard", string(config.ModeWeb)),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: POLLING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval").
				Description("Seconds or duration string (e.g. 5, 30s, 1m)").
				Value(&interval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Target followers").
				Description("How many followers to accumulate per cycle").
				Value(&target).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: LEADERBOARD")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Sort by").
				Options(
					huh.NewOption("All-time PnL", domain.SortByAllTimePnl.String()),
					huh.NewOption("ROI", domain.SortByROI.String()),
					huh.NewOption("Equity", domain.SortByEquity.String()),
					huh.NewOption("Days following", domain.SortByDays.String()),
				).
				Value(&sortBy),
			huh.NewInput().
				Title("Top N").
				Value(&top).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Minimum equity (USD)").
				Description("Leave empty for no filter").
				Value(&minEquity).
				Validate(validateOptionalAmount),
			huh.NewInput().
				Title("Minimum ROI %").
				Description("Leave empty for no filter").
				Value(&minROI).
				Validate(validateOptionalAmount),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 4: ALERTS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Alert when a follower's PnL rises above").
				Description("Leave empty to disable").
				Value(&pnlAbove).
				Validate(validateOptionalAmount),
			huh.NewInput().
				Title("Alert when a follower's PnL falls below").
				Description("Leave empty to disable").
				Value(&pnlBelow).
				Validate(validateOptionalAmount),
			huh.NewInput().
				Title("Alert when vault TVL rises above").
				Description("Leave empty to disable").
				Value(&tvlAbove).
				Validate(validateOptionalAmount),
		),
	).Run()
	if err != nil {
		return err
	}

	// mode specifics
	if mode == string(config.ModeWeb) {
		step("STEP 5: DASHBOARD")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Listen address").
					Value(&webAddr).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("address cannot be empty")
						}
						return nil
					}),
			),
		).Run()
	} else if mode == string(config.ModeLive) {
		step("STEP 5: LIVE MONITOR")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Accept keyboard commands while running?").
					Value(&interactive),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	// confirmation
	step("FINAL CONFIRMATION")

	summary := fmt.Sprintf(
		"Vault: %s\nMode: %s\nInterval: %s\nTarget: %s\nSort: %s\nTop: %s\n",
		vault, mode, interval, target, sortBy, top,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := defaults
	cfgTmp.Mode = mode
	cfgTmp.Vault = strings.TrimSpace(vault)
	cfgTmp.RefreshInterval = strings.TrimSpace(interval)
	cfgTmp.TargetFollowers = strings.TrimSpace(target)
	cfgTmp.Top = strings.TrimSpace(top)
	cfgTmp.SortBy = sortBy
	cfgTmp.MinEquity = strings.TrimSpace(minEquity)
	cfgTmp.MinROI = strings.TrimSpace(minROI)
	cfgTmp.AlertPnlAbove = strings.TrimSpace(pnlAbove)
	cfgTmp.AlertPnlBelow = strings.TrimSpace(pnlBelow)
	cfgTmp.AlertTVLAbove = strings.TrimSpace(tvlAbove)
	cfgTmp.WebAddr = strings.TrimSpace(webAddr)
	if mode == string(config.ModeLive) {
		cfgTmp.Interactive = &interactive
	}

	if err := config.WriteYaml(path, cfgTmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", path)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateAddress(s string) error {
	if _, err := domain.NormalizeAddress(s); err != nil {
		return fmt.Errorf("must be a 0x-prefixed 40 hex character address")
	}
	return nil
}

func validateInterval(s string) error {
	_, err := config.ParseInterval(strings.TrimSpace(s))
	return err
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

// validateOptionalAmount accepts empty input, otherwise any decimal.
func validateOptionalAmount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("must be a valid number")
	}
	return nil
}
