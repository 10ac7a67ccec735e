package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/hts"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the voices of the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.loadVoices(cmd.Context()); err != nil {
			return err
		}
		names := e.registry.Names()
		if outputJSON || outputFile != "" {
			return outputResult(map[string][]string{"voices": names}, outputFile, outputJSON)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRATE\tSTREAMS\tDIGEST")
		for _, name := range names {
			engine, err := e.registry.Engine(name)
			if err != nil {
				return err
			}
			v := engine.Voice()
			fmt.Fprintf(w, "%s\t%d\t%d\t%.12s\n", hts.VoiceName(v), v.Config.SampleRate, len(v.Streams()), v.Digest)
		}
		return w.Flush()
	},
}
