package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts"
	"github.com/haivivi/htsvoice/pkg/hts/model"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [voice]",
	Short: "Summarize a voice",
	Long: `Load a voice and summarize its configuration and model streams.

With --json or -o the report is written as structured data instead of the
styled summary.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		engine, err := e.engine(cmd.Context(), name)
		if err != nil {
			return err
		}
		report := inspectVoice(engine.Voice())

		if outputJSON || outputFile != "" {
			return outputResult(report, outputFile, outputJSON)
		}
		width, _ := cmd.Flags().GetInt("width")
		fmt.Println(report.summary().Render(width))
		return nil
	},
}

type streamReport struct {
	Kind       model.StreamKind `json:"kind" yaml:"kind"`
	Trees      int              `json:"trees" yaml:"trees"`
	Questions  int              `json:"questions" yaml:"questions"`
	Leaves     int              `json:"leaves" yaml:"leaves"`
	MaxDepth   int              `json:"max_depth" yaml:"max_depth"`
	VectorSize int              `json:"vector_size" yaml:"vector_size"`
	Windows    int              `json:"windows" yaml:"windows"`
	MSD        bool             `json:"msd" yaml:"msd"`
	GV         bool             `json:"gv" yaml:"gv"`
}

type inspectReport struct {
	Name       string         `json:"name" yaml:"name"`
	Locale     string         `json:"locale,omitempty" yaml:"locale,omitempty"`
	Digest     string         `json:"digest" yaml:"digest"`
	Config     model.Config   `json:"config" yaml:"config"`
	Features   int            `json:"features" yaml:"features"`
	MixFilters int            `json:"mix_filters,omitempty" yaml:"mix_filters,omitempty"`
	Streams    []streamReport `json:"streams" yaml:"streams"`
}

func inspectVoice(v *model.Voice) inspectReport {
	r := inspectReport{
		Name:       hts.VoiceName(v),
		Locale:     v.Config.Locale,
		Digest:     v.Digest,
		Config:     v.Config,
		Features:   v.Features.Len(),
		MixFilters: len(v.MixFilters),
	}
	for _, s := range v.Streams() {
		sr := streamReport{
			Kind:       s.Kind,
			Trees:      len(s.Trees.Trees),
			Questions:  len(s.Trees.Questions),
			Leaves:     s.PDF.NumLeaves(),
			VectorSize: s.VectorSize(),
			Windows:    s.PDF.NumWindows,
			MSD:        s.PDF.MSD,
			GV:         s.GV != nil,
		}
		for _, t := range s.Trees.Trees {
			sr.MaxDepth = max(sr.MaxDepth, t.Depth())
		}
		r.Streams = append(r.Streams, sr)
	}
	return r
}

func (r inspectReport) summary() cli.Summary {
	c := r.Config
	digest := r.Digest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	s := cli.Summary{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  r.Name,
		Sections: []cli.Section{
			{Label: "Voice", Rows: []cli.Row{
				{Key: "Locale", Value: r.Locale},
				{Key: "Digest", Value: digest},
				{Key: "Features", Value: strconv.Itoa(r.Features)},
				{Key: "States", Value: strconv.Itoa(c.NumStates)},
			}},
			{Label: "Vocoder", Rows: []cli.Row{
				{Key: "Sample rate", Value: fmt.Sprintf("%d Hz", c.SampleRate)},
				{Key: "Frame period", Value: fmt.Sprintf("%d samples", c.FramePeriod)},
				{Key: "Alpha", Value: strconv.FormatFloat(c.Alpha, 'g', -1, 64)},
				{Key: "Filter", Value: filterName(c)},
				{Key: "Mixed excitation", Value: mixedName(r)},
				{Key: "Fourier magnitude", Value: strconv.FormatBool(c.FourierMagnitude)},
				{Key: "Global variance", Value: strconv.FormatBool(c.GV.Enabled)},
			}},
		},
	}
	streams := cli.Section{Label: "Streams"}
	for _, sr := range r.Streams {
		v := fmt.Sprintf("%d trees, %d leaves, depth %d, dim %d", sr.Trees, sr.Leaves, sr.MaxDepth, sr.VectorSize)
		if sr.MSD {
			v += ", msd"
		}
		if sr.GV {
			v += ", gv"
		}
		streams.Rows = append(streams.Rows, cli.Row{Key: sr.Kind.String(), Value: v})
	}
	s.Sections = append(s.Sections, streams)
	return s
}

func filterName(c model.Config) string {
	if c.Stage == 0 {
		return fmt.Sprintf("MLSA (pade %d, beta %g)", c.PadeOrder, c.Beta)
	}
	return fmt.Sprintf("MGLSA (stage %d)", c.Stage)
}

func mixedName(r inspectReport) string {
	if !r.Config.MixedExcitation.Enabled {
		return "off"
	}
	if r.MixFilters > 0 {
		return fmt.Sprintf("%d trained bands", r.MixFilters)
	}
	return "designed bands"
}

func init() {
	inspectCmd.Flags().Int("width", 100, "maximum line width of the summary (0: unlimited)")
}
