package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts"
)

// addRequestFlags registers the flags that build or override a request.
func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("voice", "", "voice name (default: the context default voice)")
	f.String("labels", "", "label file with one unit per line, e.g. phone=a pos_in_syl=1")
	f.Float64("rho", 0, "duration shift in units of variance")
	f.Float64("duration-scale", 0, "variance multiplier of the duration shift")
	f.Int("frames", 0, "target utterance length in frames; derives rho")
	f.Float64("beta", 0, "post-filter strength")
	f.Float64("f0-std", 1, "F0 scale: Hz = std*exp(lf0) + mean")
	f.Float64("f0-mean", 0, "F0 shift in Hz")
	f.Bool("gv", true, "apply global variance correction")
	f.Bool("mixed", true, "use mixed excitation when the voice supports it")
	f.Bool("fourier", true, "use Fourier magnitude pulses when the voice supports it")
	f.Uint64("seed", 0, "noise seed for reproducible output")
}

// buildRequest reads the request from -f or --labels and applies the
// flags the user set on top of it.
func buildRequest(cmd *cobra.Command) (*hts.Request, error) {
	req := &hts.Request{}
	f := cmd.Flags()

	labels, _ := f.GetString("labels")
	switch {
	case inputFile != "":
		if err := cli.LoadRequest(inputFile, req); err != nil {
			return nil, err
		}
	case labels != "":
		data, err := os.ReadFile(labels)
		if err != nil {
			return nil, fmt.Errorf("failed to read labels: %w", err)
		}
		req.Labels = string(data)
	default:
		return nil, fmt.Errorf("input is required, use -f or --labels")
	}

	if f.Changed("voice") {
		req.Voice, _ = f.GetString("voice")
	}
	for name, dst := range map[string]**float64{
		"rho":            &req.Rho,
		"duration-scale": &req.DurationScale,
		"beta":           &req.Beta,
	} {
		if f.Changed(name) {
			v, _ := f.GetFloat64(name)
			*dst = &v
		}
	}
	for name, dst := range map[string]**bool{
		"gv":      &req.GV,
		"mixed":   &req.Mixed,
		"fourier": &req.Fourier,
	} {
		if f.Changed(name) {
			v, _ := f.GetBool(name)
			*dst = &v
		}
	}
	if f.Changed("frames") {
		req.TargetFrames, _ = f.GetInt("frames")
	}
	if f.Changed("f0-mean") || f.Changed("f0-std") {
		mean, _ := f.GetFloat64("f0-mean")
		std, _ := f.GetFloat64("f0-std")
		req.F0 = &hts.F0{Mean: mean, Std: std}
	}
	if f.Changed("seed") {
		seed, _ := f.GetUint64("seed")
		req.Seed = &seed
	}
	return req, nil
}
