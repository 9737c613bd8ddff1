// Package config loads and validates the YAML run configuration: the
// pair, bar period, fee schedule, liquidity fraction, slippage curve,
// margin toggle, strict-handler-error mode, and realtime poll interval
// spec.md §4/§7 reference. Grounded on backtester/config's
// Config-struct-plus-Validate idiom, switched from the teacher's JSON
// unmarshal to YAML (gopkg.in/yaml.v2) per the root config package's
// own format.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/quantforge/barstream/internal/fees"
	"github.com/quantforge/barstream/internal/liquidity"
	"github.com/quantforge/barstream/internal/market"
	"github.com/quantforge/barstream/internal/xerrors"
)

// FeeSettings selects and parameterizes a fee schedule by name.
type FeeSettings struct {
	Kind     string        `yaml:"kind"` // "flat", "maker-taker", or "tiered"
	Rate     float64       `yaml:"rate,omitempty"`
	MakerFee float64       `yaml:"maker-fee,omitempty"`
	TakerFee float64       `yaml:"taker-fee,omitempty"`
	Tiers    []TierSetting `yaml:"tiers,omitempty"`
}

// TierSetting is one volume breakpoint of a "tiered" FeeSettings.
type TierSetting struct {
	MinVolume float64 `yaml:"min-volume"`
	MakerFee  float64 `yaml:"maker-fee"`
	TakerFee  float64 `yaml:"taker-fee"`
}

// LiquiditySettings parameterizes internal/liquidity.Model.
type LiquiditySettings struct {
	Fraction     float64 `yaml:"fraction"`
	SlippageRate float64 `yaml:"slippage-rate"`
}

// Config is the top-level run configuration loaded from YAML.
type Config struct {
	ExchangeName          string            `yaml:"exchange-name"`
	Base                  string            `yaml:"base"`
	Quote                 string            `yaml:"quote"`
	BasePrec              int32             `yaml:"base-precision"`
	QuotePrec             int32             `yaml:"quote-precision"`
	BarPeriod             time.Duration     `yaml:"bar-period"`
	InitialFunds          map[string]string `yaml:"initial-funds"`
	Fees                  FeeSettings       `yaml:"fees"`
	Liquidity             LiquiditySettings `yaml:"liquidity"`
	MarginEnabled         bool              `yaml:"margin-enabled"`
	MarginInterestRate    float64           `yaml:"margin-interest-rate,omitempty"`
	MarginAccrualInterval time.Duration     `yaml:"margin-accrual-interval,omitempty"`
	StrictHandlerErrors   bool              `yaml:"strict-handler-errors"`
	PollInterval          time.Duration     `yaml:"poll-interval"`
}

// Load reads and parses path as YAML into a Config, without validating
// it — callers should call Validate explicitly so load and validation
// errors are distinguishable.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &c, nil
}

// Pair returns the configured base/quote pair.
func (c *Config) Pair() market.Pair { return market.NewPair(c.Base, c.Quote) }

// Precision returns the configured per-pair decimal precision.
func (c *Config) Precision() market.Precision {
	return market.Precision{BasePrecision: c.BasePrec, QuotePrecision: c.QuotePrec}
}

// Validate checks every field-level invariant the rest of the module
// assumes already holds (spec.md §4.6's precision/pair preconditions),
// returning an xerrors.ErrInvalidOrder-class error on the first failure.
func (c *Config) Validate() error {
	if c.ExchangeName == "" {
		return fmt.Errorf("%w: exchange-name is required", xerrors.ErrInvalidOrder)
	}
	if c.Base == "" || c.Quote == "" {
		return fmt.Errorf("%w: base/quote pair is required", xerrors.ErrUnknownPair)
	}
	if c.BasePrec < 0 || c.QuotePrec < 0 {
		return fmt.Errorf("%w: precision must be >= 0", xerrors.ErrInvalidOrder)
	}
	if c.BarPeriod <= 0 {
		return fmt.Errorf("%w: bar-period must be positive", xerrors.ErrInvalidOrder)
	}
	if err := c.Fees.validate(); err != nil {
		return err
	}
	if c.Liquidity.Fraction < 0 || c.Liquidity.Fraction > 1 {
		return fmt.Errorf("%w: liquidity fraction must be within [0,1]", xerrors.ErrInvalidOrder)
	}
	if c.Liquidity.SlippageRate < 0 {
		return fmt.Errorf("%w: slippage rate must be >= 0", xerrors.ErrInvalidOrder)
	}
	for symbol, amount := range c.InitialFunds {
		if _, err := decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("%w: initial funds for %s: %v", xerrors.ErrInvalidOrder, symbol, err)
		}
	}
	if c.MarginEnabled {
		if c.MarginInterestRate < 0 {
			return fmt.Errorf("%w: margin-interest-rate must be >= 0", xerrors.ErrInvalidOrder)
		}
		if c.MarginAccrualInterval <= 0 {
			return fmt.Errorf("%w: margin-accrual-interval must be positive when margin is enabled", xerrors.ErrInvalidOrder)
		}
	}
	return nil
}

// Schedule builds the fees.Schedule f describes.
func (f FeeSettings) Schedule() (fees.Schedule, error) {
	switch f.Kind {
	case "flat":
		return fees.Flat{Rate: decimal.NewFromFloat(f.Rate)}, nil
	case "maker-taker":
		return fees.NewMakerTaker(decimal.NewFromFloat(f.MakerFee), decimal.NewFromFloat(f.TakerFee))
	case "tiered":
		tiers := make([]fees.Tier, len(f.Tiers))
		for i, ts := range f.Tiers {
			rates, err := fees.NewMakerTaker(decimal.NewFromFloat(ts.MakerFee), decimal.NewFromFloat(ts.TakerFee))
			if err != nil {
				return nil, fmt.Errorf("tier %d: %w", i, err)
			}
			tiers[i] = fees.Tier{MinVolume: decimal.NewFromFloat(ts.MinVolume), Rates: rates}
		}
		return fees.NewTiered(tiers)
	default:
		return nil, fmt.Errorf("%w: unknown fee kind %q", xerrors.ErrInvalidOrder, f.Kind)
	}
}

// Model builds the liquidity.Model l describes.
func (l LiquiditySettings) Model() liquidity.Model {
	return liquidity.Model{
		Fraction:     decimal.NewFromFloat(l.Fraction),
		SlippageRate: decimal.NewFromFloat(l.SlippageRate),
	}
}

func (f FeeSettings) validate() error {
	switch f.Kind {
	case "flat":
		if f.Rate < 0 {
			return fmt.Errorf("%w: flat fee rate must be >= 0", xerrors.ErrInvalidOrder)
		}
	case "maker-taker":
		if f.MakerFee < 0 || f.TakerFee < 0 {
			return fmt.Errorf("%w: maker/taker fees must be >= 0", xerrors.ErrInvalidOrder)
		}
		if f.MakerFee > f.TakerFee {
			return fmt.Errorf("%w: maker fee must not exceed taker fee", xerrors.ErrInvalidOrder)
		}
	case "tiered":
		if len(f.Tiers) == 0 {
			return fmt.Errorf("%w: tiered fee schedule requires at least one tier", xerrors.ErrInvalidOrder)
		}
		for i, tier := range f.Tiers {
			if tier.MakerFee < 0 || tier.TakerFee < 0 {
				return fmt.Errorf("%w: tier %d: maker/taker fees must be >= 0", xerrors.ErrInvalidOrder, i)
			}
			if tier.MakerFee > tier.TakerFee {
				return fmt.Errorf("%w: tier %d: maker fee must not exceed taker fee", xerrors.ErrInvalidOrder, i)
			}
			if i > 0 && tier.MinVolume < f.Tiers[i-1].MinVolume {
				return fmt.Errorf("%w: tiers must be sorted ascending by min-volume", xerrors.ErrInvalidOrder)
			}
		}
	default:
		return fmt.Errorf("%w: unknown fee kind %q", xerrors.ErrInvalidOrder, f.Kind)
	}
	return nil
}
