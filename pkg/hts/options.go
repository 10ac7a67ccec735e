package hts

import (
	"log/slog"

	"github.com/haivivi/htsvoice/pkg/hts/mlpg"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/hts/unit"
	"github.com/haivivi/htsvoice/pkg/hts/vocoder"
)

// Option overrides a synthesis setting for one request. Settings start from
// the voice descriptor.
type Option func(*settings)

type settings struct {
	unit    unit.Config
	mlpg    mlpg.Config
	vocoder vocoder.Config
	logger  *slog.Logger
}

func (e *Engine) settings(opts []Option) settings {
	s := settings{
		unit:    unit.ConfigFromVoice(e.voice),
		mlpg:    mlpg.ConfigFromVoice(e.voice),
		vocoder: e.vocoder.Config(),
		logger:  e.logger,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.mlpg.Logger = s.logger
	s.vocoder.Logger = s.logger
	return s
}

// WithRho shifts every state duration by rho times its variance.
func WithRho(rho float64) Option {
	return func(s *settings) {
		s.unit.Rho = rho
	}
}

// WithDurationScale scales the variance term of the duration shift.
func WithDurationScale(scale float64) Option {
	return func(s *settings) {
		s.unit.DurationScale = scale
	}
}

// WithTargetFrames stretches the utterance to about n frames. It takes
// precedence over WithRho.
func WithTargetFrames(n int) Option {
	return func(s *settings) {
		s.unit.TargetFrames = n
	}
}

// WithBeta sets the post-filter strength.
func WithBeta(beta float64) Option {
	return func(s *settings) {
		s.vocoder.Beta = beta
	}
}

// WithF0 maps log-F0 to Hz as std*exp(lf0)+mean.
func WithF0(mean, std float64) Option {
	return func(s *settings) {
		s.vocoder.F0Mean = mean
		s.vocoder.F0Std = std
	}
}

// WithGV turns global variance correction on or off.
func WithGV(enabled bool) Option {
	return func(s *settings) {
		s.mlpg.GV = enabled
	}
}

// WithGVMaxIter caps the global variance optimization of one stream. Zero
// means moment matching only.
func WithGVMaxIter(kind model.StreamKind, n int) Option {
	return func(s *settings) {
		if kind < model.NumStreamKinds {
			s.mlpg.MaxIter[kind] = n
		}
	}
}

// WithMixedExcitation disables band mixing when false. Mixing can only be
// enabled for voices that support it.
func WithMixedExcitation(enabled bool) Option {
	return func(s *settings) {
		if !enabled {
			s.vocoder.MixFilters = nil
			s.vocoder.Bands = 0
		}
	}
}

// WithFourierMagnitude disables Fourier-shaped pulses when false. Shaped
// pulses can only be enabled for voices with a magnitude stream.
func WithFourierMagnitude(enabled bool) Option {
	return func(s *settings) {
		if !enabled {
			s.vocoder.FourierMagnitude = false
		}
	}
}

// WithSeed seeds the noise source.
func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.vocoder.Seed = seed
	}
}

// WithLogger sets the logger of one request.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}
