package setup

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/config"
	"gopkg.in/yaml.v3"
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

// Answers are the values collected by the wizard, as typed.
type Answers struct {
	Name       string
	CoinSymbol string
	A          string
	Fee        string
	Funding    string
	Liquidity  string
	OutputDir  string

	Mode         string // "scenarios", "walks" or "both"
	Amount       string
	MaxSwaps     string
	SwapDuration string
	MinBalance   string
	IsolateFirst bool

	Trials string
	Steps  string
	Min    string
	Max    string
	Seed   string
}

// DefaultAnswers are the reference frxETH/ETH setup.
func DefaultAnswers() Answers {
	return Answers{
		Name:         "frxeth_eth_pool",
		CoinSymbol:   "frxETH",
		A:            strconv.Itoa(config.DefaultA),
		Fee:          strconv.Itoa(config.DefaultFee),
		Funding:      "1000000000000000000000000000000",
		Liquidity:    "1000000000000000000000000000000",
		OutputDir:    config.DefaultOutputDir,
		Mode:         "scenarios",
		Amount:       "1000000000000000000",
		MaxSwaps:     strconv.Itoa(config.DefaultMaxSwaps),
		SwapDuration: strconv.Itoa(config.DefaultSwapDuration),
		MinBalance:   "100",
		IsolateFirst: true,
		Trials:       "10",
		Steps:        "100",
		Min:          "100000000000000000",
		Max:          "1000000000000000000",
		Seed:         "42",
	}
}

// BuildConfig turns wizard answers into a config file body.
func BuildConfig(a Answers) ([]config.ConfigTmp, error) {
	amp, err := strconv.ParseUint(a.A, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "amplification")
	}
	fee, err := strconv.ParseUint(a.Fee, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "fee")
	}
	duration, err := strconv.ParseInt(a.SwapDuration, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "swap duration")
	}
	maxSwaps, err := strconv.Atoi(a.MaxSwaps)
	if err != nil {
		return nil, errors.Wrap(err, "max swaps")
	}

	c := config.ConfigTmp{
		Name:      a.Name,
		Pool:      config.PoolTmp{CoinSymbol: a.CoinSymbol, A: amp, Fee: fee},
		Funding:   a.Funding,
		Liquidity: a.Liquidity,
		OutputDir: a.OutputDir,
	}

	if a.Mode == "scenarios" || a.Mode == "both" {
		coin := strings.ToLower(a.CoinSymbol)
		c.Scenarios = []config.ScenarioTmp{
			{
				Name:         coin + "_to_eth",
				Direction:    "reverse",
				Amount:       a.Amount,
				SwapDuration: &duration,
				MinBalance:   a.MinBalance,
				MaxSwaps:     maxSwaps,
				Isolated:     a.IsolateFirst,
				Output:       coin + "_eth_swaps.csv",
			},
			{
				Name:         "eth_to_" + coin,
				Direction:    "forward",
				Amount:       a.Amount,
				SwapDuration: &duration,
				MinBalance:   a.MinBalance,
				MaxSwaps:     maxSwaps,
				Output:       "eth_" + coin + "_swaps.csv",
			},
		}
	}

	if a.Mode == "walks" || a.Mode == "both" {
		trials, err := strconv.Atoi(a.Trials)
		if err != nil {
			return nil, errors.Wrap(err, "trials")
		}
		steps, err := strconv.Atoi(a.Steps)
		if err != nil {
			return nil, errors.Wrap(err, "steps")
		}
		seed, err := strconv.ParseInt(a.Seed, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "seed")
		}
		c.Walks = &config.WalksTmp{
			Prefix:       config.DefaultWalkPrefix,
			Trials:       trials,
			Steps:        steps,
			Min:          a.Min,
			Max:          a.Max,
			Seed:         seed,
			SwapDuration: &duration,
			MinBalance:   a.MinBalance,
			MaxSwaps:     maxSwaps,
		}
	}

	configs := []config.ConfigTmp{c}
	data, err := yaml.Marshal(configs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate yaml")
	}
	if _, err := config.Parse(data); err != nil {
		return nil, err
	}
	return configs, nil
}

// RunTUI launches the configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := DefaultAnswers()
	var confirm bool

	screen := func(step string) {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("SWAPSIM CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(step))
	}

	screen("STEP 1: POOL")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe the pool and how much the actors hold.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Simulation name").Value(&a.Name).Validate(notEmpty),
			huh.NewInput().Title("Coin symbol").Description("ERC20 coin paired with ETH").Value(&a.CoinSymbol).Validate(notEmpty),
			huh.NewInput().Title("Amplification (A)").Value(&a.A).Validate(positiveInt),
			huh.NewInput().Title("Fee").Description("Out of 10000000000").Value(&a.Fee).Validate(positiveInt),
			huh.NewInput().Title("Funding per actor (wei)").Value(&a.Funding).Validate(positiveInt),
			huh.NewInput().Title("Initial liquidity per coin (wei)").Value(&a.Liquidity).Validate(positiveInt),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: MODE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should be simulated?").
				Options(
					huh.NewOption("Fixed scenarios (both directions)", "scenarios"),
					huh.NewOption("Random walks", "walks"),
					huh.NewOption("Both", "both"),
				).
				Value(&a.Mode),
			huh.NewInput().Title("Seconds between swaps").Value(&a.SwapDuration).Validate(nonNegativeInt),
			huh.NewInput().Title("Minimum balance (wei)").Value(&a.MinBalance).Validate(nonNegativeInt),
			huh.NewInput().Title("Max swaps per run").Value(&a.MaxSwaps).Validate(nonNegativeInt),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.Mode != "walks" {
		screen("STEP 3: SCENARIOS")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Swap amount (wei)").Value(&a.Amount).Validate(positiveInt),
				huh.NewConfirm().Title("Roll back the first scenario?").Value(&a.IsolateFirst),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	if a.Mode != "scenarios" {
		screen("STEP 4: RANDOM WALKS")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Trials").Value(&a.Trials).Validate(positiveInt),
				huh.NewInput().Title("Steps per trial").Value(&a.Steps).Validate(positiveInt),
				huh.NewInput().Title("Minimum step (wei)").Value(&a.Min).Validate(positiveInt),
				huh.NewInput().Title("Maximum step (wei)").Value(&a.Max).Validate(positiveInt),
				huh.NewInput().Title("Seed").Value(&a.Seed).Validate(nonNegativeInt),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf("Name: %s\nPool: ETH/%s A=%s fee=%s\nMode: %s\nOutput: %s\n",
		a.Name, a.CoinSymbol, a.A, a.Fee, a.Mode, a.OutputDir)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	configs, err := BuildConfig(a)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(configs)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be empty")
	}
	return nil
}

func positiveInt(s string) error {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() <= 0 {
		return errors.New("must be a positive integer")
	}
	return nil
}

func nonNegativeInt(s string) error {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return errors.New("must be a non-negative integer")
	}
	return nil
}
