package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/swapsim/internal/domain"
	"github.com/vadiminshakov/swapsim/internal/services/walk"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBlockDuration  = domain.DefaultBlockDuration
	DefaultSwapDuration   = 12
	DefaultMaxSwaps       = 10
	DefaultStartTimestamp = 1_700_000_000
	DefaultStartBlock     = 18_000_000
	DefaultA              = 120
	DefaultFee            = 4_000_000
	DefaultAdminFee       = 5_000_000_000
	DefaultMaExpTime      = 866
	DefaultOutputDir      = "data"
	DefaultWalkPrefix     = "walk"
)

var (
	defaultFunding    = pow10(30)
	defaultLiquidity  = pow10(30)
	defaultSwapAmount = pow10(18)
	defaultMinBalance = big.NewInt(100)
)

// Config is one independent simulation: a freshly provisioned environment,
// the fixed scenarios run on it in order and an optional batch of random walks.
type Config struct {
	Name           string
	BlockDuration  int64
	StartTimestamp int64
	StartBlock     int64
	Pool           PoolConfig
	Funding        *big.Int
	Liquidity      *big.Int
	OutputDir      string
	Database       string
	SnapshotDir    string
	Scenarios      []Scenario
	Walks          *Walks
}

// PoolConfig describes the simulated pool.
type PoolConfig struct {
	CoinSymbol string
	A          uint64
	Fee        uint64
	AdminFee   uint64
	MaExpTime  uint64
}

// Scenario is a fixed-amount, fixed-direction run.
type Scenario struct {
	Name         string
	Direction    domain.Direction
	Amount       *big.Int
	SwapDuration int64
	MinBalance   *big.Int
	MaxSwaps     int
	// Isolated scenarios are rolled back when they finish.
	Isolated bool
	Output   string
}

// Walks is a batch of random-walk trials.
type Walks struct {
	Prefix       string
	Trials       int
	Steps        int
	MinMagnitude *big.Int
	MaxMagnitude *big.Int
	Seed         int64
	SwapDuration int64
	MinBalance   *big.Int
	MaxSwaps     int
}

// ConfigTmp is the YAML form of Config. Token amounts are decimal strings.
type ConfigTmp struct {
	Name           string        `yaml:"name"`
	BlockDuration  int64         `yaml:"block_duration,omitempty"`
	StartTimestamp int64         `yaml:"start_timestamp,omitempty"`
	StartBlock     int64         `yaml:"start_block,omitempty"`
	Pool           PoolTmp       `yaml:"pool,omitempty"`
	Funding        string        `yaml:"funding,omitempty"`
	Liquidity      string        `yaml:"liquidity,omitempty"`
	OutputDir      string        `yaml:"output_dir,omitempty"`
	Database       string        `yaml:"database,omitempty"`
	SnapshotDir    string        `yaml:"snapshot_dir,omitempty"`
	Scenarios      []ScenarioTmp `yaml:"scenarios,omitempty"`
	Walks          *WalksTmp     `yaml:"walks,omitempty"`
}

type PoolTmp struct {
	CoinSymbol string `yaml:"coin_symbol,omitempty"`
	A          uint64 `yaml:"a,omitempty"`
	Fee        uint64 `yaml:"fee,omitempty"`
	AdminFee   uint64 `yaml:"admin_fee,omitempty"`
	MaExpTime  uint64 `yaml:"ma_exp_time,omitempty"`
}

type ScenarioTmp struct {
	Name         string `yaml:"name"`
	Direction    string `yaml:"direction"`
	Amount       string `yaml:"amount,omitempty"`
	SwapDuration *int64 `yaml:"swap_duration,omitempty"`
	MinBalance   string `yaml:"min_balance,omitempty"`
	MaxSwaps     int    `yaml:"max_swaps,omitempty"`
	Isolated     bool   `yaml:"isolated,omitempty"`
	Output       string `yaml:"output,omitempty"`
}

type WalksTmp struct {
	Prefix       string `yaml:"prefix,omitempty"`
	Trials       int    `yaml:"trials"`
	Steps        int    `yaml:"steps"`
	Min          string `yaml:"min"`
	Max          string `yaml:"max"`
	Seed         int64  `yaml:"seed"`
	SwapDuration *int64 `yaml:"swap_duration,omitempty"`
	MinBalance   string `yaml:"min_balance,omitempty"`
	MaxSwaps     int    `yaml:"max_swaps,omitempty"`
}

// Get reads the configuration list at path.
func Get(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML list of simulation entries and applies defaults.
func Parse(data []byte) ([]Config, error) {
	var tmps []ConfigTmp
	if err := yaml.Unmarshal(data, &tmps); err != nil {
		return nil, errors.Wrap(err, "decode yaml config")
	}
	if len(tmps) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidConfiguration, "config has no entries")
	}

	configs := make([]Config, 0, len(tmps))
	seen := make(map[string]bool, len(tmps))
	for i, tmp := range tmps {
		c, err := tmp.toConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d (%s)", i, tmp.Name)
		}
		if seen[c.Name] {
			return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "duplicate entry name %q", c.Name)
		}
		seen[c.Name] = true
		configs = append(configs, c)
	}
	if err := checkOutputs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// checkOutputs rejects entries that would write to the same output. Entries
// run concurrently and must not share a scenario file, a walk file series or
// a run key in one database.
func checkOutputs(configs []Config) error {
	owner := make(map[[2]string]string)
	claim := func(entry, kind, target string) error {
		key := [2]string{kind, target}
		if prev, ok := owner[key]; ok && prev != entry {
			return errors.Wrapf(domain.ErrInvalidConfiguration, "entries %q and %q share %s %s", prev, entry, kind, target)
		}
		owner[key] = entry
		return nil
	}

	for _, c := range configs {
		dir := filepath.Clean(c.OutputDir)
		for _, s := range c.Scenarios {
			if s.Output != "" {
				if err := claim(c.Name, "output file", filepath.Join(dir, s.Output)); err != nil {
					return err
				}
			}
			if c.Database != "" {
				if err := claim(c.Name, "database run key", filepath.Clean(c.Database)+":"+s.Name); err != nil {
					return err
				}
			}
		}
		if c.Walks == nil {
			continue
		}
		if err := claim(c.Name, "walk outputs", filepath.Join(dir, c.Walks.Prefix+"_<n>.csv")); err != nil {
			return err
		}
		if c.Database != "" {
			if err := claim(c.Name, "database run key", filepath.Clean(c.Database)+":"+c.Walks.Prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t ConfigTmp) toConfig() (Config, error) {
	if strings.TrimSpace(t.Name) == "" {
		return Config{}, errors.Wrap(domain.ErrInvalidConfiguration, "name is required")
	}

	c := Config{
		Name:           t.Name,
		BlockDuration:  orInt64(t.BlockDuration, DefaultBlockDuration),
		StartTimestamp: orInt64(t.StartTimestamp, DefaultStartTimestamp),
		StartBlock:     orInt64(t.StartBlock, DefaultStartBlock),
		Pool: PoolConfig{
			CoinSymbol: orString(t.Pool.CoinSymbol, "frxETH"),
			A:          orUint64(t.Pool.A, DefaultA),
			Fee:        orUint64(t.Pool.Fee, DefaultFee),
			AdminFee:   orUint64(t.Pool.AdminFee, DefaultAdminFee),
			MaExpTime:  orUint64(t.Pool.MaExpTime, DefaultMaExpTime),
		},
		OutputDir:   orString(t.OutputDir, DefaultOutputDir),
		Database:    t.Database,
		SnapshotDir: t.SnapshotDir,
	}
	if c.BlockDuration < 0 {
		return Config{}, errors.Wrapf(domain.ErrInvalidConfiguration, "block_duration must be positive, got %d", c.BlockDuration)
	}

	var err error
	if c.Funding, err = parseAmount("funding", t.Funding, defaultFunding); err != nil {
		return Config{}, err
	}
	if c.Liquidity, err = parseAmount("liquidity", t.Liquidity, defaultLiquidity); err != nil {
		return Config{}, err
	}
	if c.Liquidity.Sign() <= 0 || c.Liquidity.Cmp(c.Funding) > 0 {
		return Config{}, errors.Wrapf(domain.ErrInvalidConfiguration, "liquidity %s must be positive and covered by funding %s", c.Liquidity, c.Funding)
	}

	for _, st := range t.Scenarios {
		s, err := st.toScenario()
		if err != nil {
			return Config{}, errors.Wrapf(err, "scenario %q", st.Name)
		}
		c.Scenarios = append(c.Scenarios, s)
	}

	if t.Walks != nil {
		w, err := t.Walks.toWalks()
		if err != nil {
			return Config{}, errors.Wrap(err, "walks")
		}
		c.Walks = &w
	}

	if len(c.Scenarios) == 0 && c.Walks == nil {
		return Config{}, errors.Wrap(domain.ErrInvalidConfiguration, "entry needs scenarios or walks")
	}
	return c, nil
}

func (t ScenarioTmp) toScenario() (Scenario, error) {
	if t.Name == "" {
		return Scenario{}, errors.Wrap(domain.ErrInvalidConfiguration, "scenario name is required")
	}
	dir, err := domain.ParseDirection(t.Direction)
	if err != nil {
		return Scenario{}, errors.Wrap(domain.ErrInvalidConfiguration, err.Error())
	}

	s := Scenario{
		Name:         t.Name,
		Direction:    dir,
		SwapDuration: orDuration(t.SwapDuration),
		MaxSwaps:     t.MaxSwaps,
		Isolated:     t.Isolated,
		Output:       t.Output,
	}
	if s.MaxSwaps == 0 {
		s.MaxSwaps = DefaultMaxSwaps
	}
	if s.MaxSwaps < 0 || s.SwapDuration < 0 {
		return Scenario{}, errors.Wrapf(domain.ErrInvalidConfiguration, "max_swaps (%d) and swap_duration (%d) must not be negative", s.MaxSwaps, s.SwapDuration)
	}
	if s.Amount, err = parseAmount("amount", t.Amount, defaultSwapAmount); err != nil {
		return Scenario{}, err
	}
	if s.MinBalance, err = parseAmount("min_balance", t.MinBalance, defaultMinBalance); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

func (t WalksTmp) toWalks() (Walks, error) {
	w := Walks{
		Prefix:       orString(t.Prefix, DefaultWalkPrefix),
		Trials:       t.Trials,
		Steps:        t.Steps,
		Seed:         t.Seed,
		SwapDuration: orDuration(t.SwapDuration),
		MaxSwaps:     t.MaxSwaps,
	}
	if w.Trials <= 0 {
		return Walks{}, errors.Wrapf(domain.ErrInvalidConfiguration, "trials must be positive, got %d", w.Trials)
	}

	var err error
	if w.MinMagnitude, err = parseAmount("min", t.Min, nil); err != nil {
		return Walks{}, err
	}
	if w.MaxMagnitude, err = parseAmount("max", t.Max, nil); err != nil {
		return Walks{}, err
	}
	if w.MinBalance, err = parseAmount("min_balance", t.MinBalance, defaultMinBalance); err != nil {
		return Walks{}, err
	}
	if w.MaxSwaps < 0 || w.SwapDuration < 0 {
		return Walks{}, errors.Wrapf(domain.ErrInvalidConfiguration, "max_swaps (%d) and swap_duration (%d) must not be negative", w.MaxSwaps, w.SwapDuration)
	}
	if _, err := walk.New(w.MinMagnitude, w.MaxMagnitude, w.Steps, w.Seed); err != nil {
		return Walks{}, errors.Wrap(domain.ErrInvalidConfiguration, err.Error())
	}
	return w, nil
}

// parseAmount parses a decimal integer string. An empty string yields def, or an error if def is nil.
func parseAmount(field, raw string, def *big.Int) (*big.Int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if raw == "" {
		if def == nil {
			return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "'%s' is required", field)
		}
		return new(big.Int).Set(def), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "incorrect '%s' param %q (must be an integer)", field, raw)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(domain.ErrInvalidConfiguration, "'%s' must not be negative, got %s", field, raw)
	}
	return v, nil
}

func orDuration(v *int64) int64 {
	if v == nil {
		return DefaultSwapDuration
	}
	return *v
}

func orInt64(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func orUint64(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// Default returns the two scenarios of the reference setup: an isolated
// frxETH to ETH run followed by a committed ETH to frxETH run.
func Default() []ConfigTmp {
	return []ConfigTmp{{
		Name:      "frxeth_eth_pool",
		Funding:   defaultFunding.String(),
		Liquidity: defaultLiquidity.String(),
		OutputDir: DefaultOutputDir,
		Scenarios: []ScenarioTmp{
			{
				Name:      "frxeth_to_eth",
				Direction: domain.DirectionReverse.String(),
				Amount:    defaultSwapAmount.String(),
				MaxSwaps:  DefaultMaxSwaps,
				Isolated:  true,
				Output:    "frxeth_eth_swaps.csv",
			},
			{
				Name:      "eth_to_frxeth",
				Direction: domain.DirectionForward.String(),
				Amount:    defaultSwapAmount.String(),
				MaxSwaps:  DefaultMaxSwaps,
				Output:    "eth_frxeth_swaps.csv",
			},
		},
	}}
}
