package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/audio/codec"
	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize speech",
	Long: `Synthesize speech from a request file or a label file.

The output encoding follows the file extension (.wav, .ul, .al, anything
else is raw 16-bit little-endian PCM) unless --encoding is given. Use -o -
to stream raw or G.711 audio to stdout.

Example request (request.yaml):
  voice: en/demo
  seed: 7
  units:
    - {phone: sil}
    - {phone: a, pos_in_syl: "1"}
    - {phone: sil}

Examples:
  htsvoice synth -f request.yaml -o hello.wav
  htsvoice synth --labels hello.lab --voice en/demo -o hello.ul
  htsvoice synth -f request.yaml --encoding l16 --rate 16000 -o - | aplay -f S16_LE -r 16000`,
	RunE: runSynth,
}

// synthSummary is printed after the audio is written.
type synthSummary struct {
	hts.Result `yaml:",inline"`
	Output     string         `json:"output" yaml:"output"`
	Encoding   codec.Encoding `json:"encoding" yaml:"encoding"`
	OutputRate int            `json:"output_rate" yaml:"output_rate"`
	Clipped    int64          `json:"clipped,omitempty" yaml:"clipped,omitempty"`
}

func runSynth(cmd *cobra.Command, args []string) error {
	if outputFile == "" {
		return fmt.Errorf("output file is required, use -o (- for stdout)")
	}
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	encoding := codec.EncodingForPath(outputFile)
	if cmd.Flags().Changed("encoding") {
		name, _ := cmd.Flags().GetString("encoding")
		if encoding, err = codec.ParseEncoding(name); err != nil {
			return err
		}
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
	rate, _ := cmd.Flags().GetInt("rate")
	if rate == 0 && encoding.SampleRate() == 0 {
		rate = e.ctx.SampleRate
	}

	vectors, err := engine.Vectors(req)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	summaryOut := os.Stdout
	if outputFile == "-" {
		if encoding == codec.WAV {
			return fmt.Errorf("wav cannot be written to stdout; use l16 or a file")
		}
		summaryOut = os.Stderr
	} else {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	sink, err := codec.NewSink(w, encoding, engine.SampleRate(), rate)
	if err != nil {
		return err
	}
	res, err := engine.Synthesize(cmd.Context(), vectors, sink, req.Options()...)
	if err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	cli.PrintSuccess("%s of audio in %s", cli.FormatDuration(res.Duration), cli.FormatDuration(res.Elapsed))
	if n := sink.Clipped(); n > 0 {
		cli.PrintWarning("%d samples clipped", n)
	}

	format := cli.FormatYAML
	if outputJSON {
		format = cli.FormatJSON
	}
	return cli.Output(synthSummary{
		Result:     *res,
		Output:     outputFile,
		Encoding:   encoding,
		OutputRate: sink.Format().SampleRate(),
		Clipped:    sink.Clipped(),
	}, cli.OutputOptions{Format: format, Writer: summaryOut})
}

func init() {
	addRequestFlags(synthCmd)
	synthCmd.Flags().String("encoding", "", "output encoding: l16, wav, mulaw or alaw (default: from the file extension)")
	synthCmd.Flags().Int("rate", 0, "output sample rate in Hz (default: the voice rate)")
}
