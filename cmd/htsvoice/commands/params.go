package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/hts/mlpg"
	"github.com/haivivi/htsvoice/pkg/hts/model"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print generated parameter trajectories",
	Long: `Run duration assignment and parameter generation without the vocoder and
print the state durations and the static trajectories.

Examples:
  htsvoice params -f request.yaml
  htsvoice params -f request.yaml --stream lf0,mgc --json -o params.json`,
	RunE: runParams,
}

type paramsUnit struct {
	Phone  string `json:"phone" yaml:"phone"`
	Frames []int  `json:"frames" yaml:"frames,flow"`
	GV     bool   `json:"gv" yaml:"gv"`
}

type paramsOutput struct {
	UtteranceID string                 `json:"utterance_id" yaml:"utterance_id"`
	Frames      int                    `json:"frames" yaml:"frames"`
	Rho         float64                `json:"rho" yaml:"rho"`
	Units       []paramsUnit           `json:"units" yaml:"units"`
	Voiced      []bool                 `json:"voiced,omitempty" yaml:"voiced,omitempty,flow"`
	Streams     map[string][][]float64 `json:"streams,omitempty" yaml:"streams,omitempty"`
	GV          []mlpg.GVReport        `json:"gv,omitempty" yaml:"gv,omitempty"`
}

func runParams(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	var kinds []model.StreamKind
	names, _ := cmd.Flags().GetStringSlice("stream")
	for _, n := range names {
		k, err := model.ParseStreamKind(n)
		if err != nil {
			return err
		}
		kinds = append(kinds, k)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	engine, err := e.engine(cmd.Context(), req.Voice)
	if err != nil {
		return err
	}
	vectors, err := engine.Vectors(req)
	if err != nil {
		return err
	}
	traj, err := engine.Parameters(cmd.Context(), vectors, req.Options()...)
	if err != nil {
		return err
	}

	utt := traj.Utterance
	out := paramsOutput{
		UtteranceID: utt.ID,
		Frames:      utt.Frames,
		Rho:         utt.Rho,
		GV:          traj.GV,
	}
	for _, u := range utt.Units {
		pu := paramsUnit{Phone: u.Phone, GV: u.GV}
		for _, s := range u.States {
			pu.Frames = append(pu.Frames, s.Frames)
		}
		out.Units = append(out.Units, pu)
	}
	for _, k := range kinds {
		if k == model.LogF0 {
			out.Voiced = traj.Parameters.Voiced
		}
		if s := traj.Parameters.Stream(k); s != nil {
			if out.Streams == nil {
				out.Streams = make(map[string][][]float64)
			}
			out.Streams[k.String()] = s
		}
	}
	return outputResult(out, outputFile, outputJSON)
}

func init() {
	addRequestFlags(paramsCmd)
	paramsCmd.Flags().StringSlice("stream", nil, "streams whose trajectories to print (lf0, mgc, str, mag)")
}
