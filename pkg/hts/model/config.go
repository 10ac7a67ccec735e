package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// DefaultSilencePhones are the phones excluded from global variance when the
// descriptor does not name any.
var DefaultSilencePhones = []string{"_", "pau", "sil"}

// Config is the voice descriptor, usually stored as voice.yaml next to the
// model files.
type Config struct {
	Name   string `yaml:"name" msgpack:"name"`
	Locale string `yaml:"locale,omitempty" msgpack:"locale"`

	// SampleRate is the output rate in Hz.
	SampleRate int `yaml:"sample_rate" msgpack:"sample_rate"`
	// FramePeriod is the number of samples per frame.
	FramePeriod int `yaml:"frame_period" msgpack:"frame_period"`
	// InterpolationPeriod is the number of samples between filter
	// coefficient updates.
	InterpolationPeriod int `yaml:"interpolation_period" msgpack:"interpolation_period"`
	// NumStates is the number of emitting states per unit.
	NumStates int `yaml:"num_states" msgpack:"num_states"`

	// Alpha is the frequency warping factor.
	Alpha float64 `yaml:"alpha" msgpack:"alpha"`
	// Stage selects the filter: 0 for MLSA, otherwise an MGLSA cascade
	// with gamma = -1/stage.
	Stage int `yaml:"stage" msgpack:"stage"`
	// Beta is the post-filter strength; MLSA only.
	Beta float64 `yaml:"beta" msgpack:"beta"`
	// PadeOrder is the order of the exponential approximation, 4 or 5.
	PadeOrder int `yaml:"pade_order" msgpack:"pade_order"`

	Duration        DurationConfig `yaml:"duration" msgpack:"duration"`
	F0              F0Config       `yaml:"f0" msgpack:"f0"`
	VoicedThreshold float64        `yaml:"voiced_threshold" msgpack:"voiced_threshold"`
	SilencePhones   []string       `yaml:"silence_phones,omitempty" msgpack:"silence_phones"`

	GV               GVConfig    `yaml:"gv" msgpack:"gv"`
	MixedExcitation  MixedConfig `yaml:"mixed_excitation" msgpack:"mixed_excitation"`
	FourierMagnitude bool        `yaml:"fourier_magnitude" msgpack:"fourier_magnitude"`

	Features feature.Spec           `yaml:"features" msgpack:"features"`
	Streams  map[string]StreamFiles `yaml:"streams" msgpack:"streams"`
}

// DurationConfig controls state duration assignment.
type DurationConfig struct {
	// Rho shifts durations by rho times the variance.
	Rho float64 `yaml:"rho" msgpack:"rho"`
	// Scale multiplies the variance term.
	Scale float64 `yaml:"scale" msgpack:"scale"`
}

// F0Config maps generated log-F0 to Hz as std*exp(lf0)+mean.
type F0Config struct {
	Mean float64 `yaml:"mean" msgpack:"mean"`
	Std  float64 `yaml:"std" msgpack:"std"`
}

// GVConfig controls global variance correction.
type GVConfig struct {
	Enabled bool `yaml:"enabled" msgpack:"enabled"`
	// MaxIter caps the optimization per stream name.
	MaxIter map[string]int `yaml:"max_iter,omitempty" msgpack:"max_iter"`
	// Weight scales the GV term of the objective.
	Weight float64 `yaml:"weight" msgpack:"weight"`
}

// MixedConfig controls mixed excitation.
type MixedConfig struct {
	Enabled bool `yaml:"enabled" msgpack:"enabled"`
	// Filters is the band filter file, relative to the descriptor. When
	// empty, band filters are designed from the strength dimension.
	Filters string `yaml:"filters,omitempty" msgpack:"filters"`
	// Taps is the length of designed band filters.
	Taps int `yaml:"taps,omitempty" msgpack:"taps"`
}

// StreamFiles names the model files of one stream, relative to the
// descriptor.
type StreamFiles struct {
	Tree string `yaml:"tree" msgpack:"tree"`
	PDF  string `yaml:"pdf" msgpack:"pdf"`
	GV   string `yaml:"gv,omitempty" msgpack:"gv"`
}

// ParseConfig decodes a voice descriptor, applies defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("model: parse descriptor: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Marshal encodes the descriptor as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FramePeriod == 0 {
		c.FramePeriod = c.SampleRate / 200
	}
	if c.InterpolationPeriod == 0 {
		c.InterpolationPeriod = 1
	}
	if c.NumStates == 0 {
		c.NumStates = 5
	}
	if c.PadeOrder == 0 {
		c.PadeOrder = 5
	}
	if c.Duration.Scale == 0 {
		c.Duration.Scale = 1
	}
	if c.F0.Std == 0 {
		c.F0.Std = 1
	}
	if c.VoicedThreshold == 0 {
		c.VoicedThreshold = 0.5
	}
	if c.SilencePhones == nil {
		c.SilencePhones = slices.Clone(DefaultSilencePhones)
	}
	if c.GV.Weight == 0 {
		c.GV.Weight = 1
	}
	if c.MixedExcitation.Taps == 0 {
		c.MixedExcitation.Taps = 47
	}
}

// Validate checks the descriptor for inconsistencies that would make
// synthesis impossible.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(c.SampleRate > 0, "sample_rate must be positive")
	check(c.FramePeriod > 0, "frame_period must be positive")
	check(c.InterpolationPeriod > 0 && c.InterpolationPeriod <= c.FramePeriod,
		"interpolation_period must be in [1, frame_period]")
	check(c.NumStates > 0, "num_states must be positive")
	check(c.Alpha > -1 && c.Alpha < 1, "alpha must be in (-1, 1)")
	check(c.Stage >= 0, "stage must not be negative")
	check(c.Stage > 0 || c.PadeOrder == 4 || c.PadeOrder == 5, "pade_order must be 4 or 5")
	check(c.Duration.Scale > 0, "duration.scale must be positive")
	check(c.VoicedThreshold >= 0 && c.VoicedThreshold <= 1, "voiced_threshold must be in [0, 1]")
	check(c.MixedExcitation.Taps > 0, "mixed_excitation.taps must be positive")
	for name, sf := range c.Streams {
		if _, err := ParseStreamKind(name); err != nil {
			errs = append(errs, err)
			continue
		}
		check(sf.Tree != "" && sf.PDF != "", "stream %s: tree and pdf are required", name)
	}
	for name, n := range c.GV.MaxIter {
		_, err := ParseStreamKind(name)
		check(err == nil, "gv.max_iter: unknown stream %q", name)
		check(n >= 0, "gv.max_iter.%s must not be negative", name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("model: invalid descriptor %q: %w", c.Name, errors.Join(errs...))
	}
	return nil
}

// GVMaxIter returns the optimization cap for kind, 100 when unset.
func (c *Config) GVMaxIter(kind StreamKind) int {
	if n, ok := c.GV.MaxIter[kind.String()]; ok {
		return n
	}
	return 100
}

// IsSilence reports whether phone is excluded from global variance.
func (c *Config) IsSilence(phone string) bool {
	return slices.Contains(c.SilencePhones, phone)
}
