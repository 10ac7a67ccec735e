package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage compiled voice snapshots",
	Long: `Voices are compiled into snapshots on first load and reused while their
files are unchanged. Snapshots are kept in the context cache directory
(default ~/.giztoy/htsvoice/cache/<context>).`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openCacheOnly()
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := e.cache.List(cmd.Context())
		if err != nil {
			return err
		}
		if outputJSON || outputFile != "" {
			return outputResult(entries, outputFile, outputJSON)
		}
		if len(entries) == 0 {
			fmt.Println("No cached snapshots")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DIGEST\tNAME\tLOCALE\tSIZE\tCREATED")
		for _, en := range entries {
			fmt.Fprintf(w, "%.12s\t%s\t%s\t%s\t%s\n", en.Digest, en.Name, en.Locale,
				cli.FormatBytes(int64(en.Size)), en.Created.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <digest>",
	Short: "Remove one snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openCacheOnly()
		if err != nil {
			return err
		}
		defer e.Close()

		digest, err := resolveDigest(cmd.Context(), e.cache, args[0])
		if err != nil {
			return err
		}
		if err := e.cache.Remove(cmd.Context(), digest); err != nil {
			return err
		}
		cli.PrintSuccess("Snapshot %.12s removed", digest)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openCacheOnly()
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := e.cache.Purge(cmd.Context())
		if err != nil {
			return err
		}
		cli.PrintSuccess("%d snapshots removed", n)
		return nil
	},
}

// resolveDigest expands a digest prefix, as printed by cache list, to the
// single full digest it names.
func resolveDigest(ctx context.Context, cache *model.Cache, prefix string) (string, error) {
	entries, err := cache.List(ctx)
	if err != nil {
		return "", err
	}
	var match []string
	for _, en := range entries {
		if strings.HasPrefix(en.Digest, prefix) {
			match = append(match, en.Digest)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("no snapshot matches %q", prefix)
	case 1:
		return match[0], nil
	}
	return "", fmt.Errorf("%q matches %d snapshots", prefix, len(match))
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheRemoveCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}
