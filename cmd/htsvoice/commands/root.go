package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/cli"
)

const appName = "htsvoice"

var (
	// Global flags
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool
	voicesDir   string
	cacheDir    string

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "htsvoice",
	Short: "Statistical parametric speech synthesis",
	Long: `htsvoice - synthesize speech from HMM voices.

A voice is a directory (or S3 prefix) holding a voice.yaml descriptor next to
its decision tree, PDF and filter files. Contexts name where voices live and
where compiled snapshots are cached, similar to kubectl's context management.

Configuration is stored in ~/.giztoy/htsvoice/.

Examples:
  # Set up a context over a local voice directory
  htsvoice config add-context local --voices ./voices

  # Synthesize a request to a WAV file
  htsvoice synth -f request.yaml -o hello.wav

  # Run without a context
  htsvoice --voices ./voices inspect en/demo`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.giztoy/htsvoice/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON, - for stdin)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&voicesDir, "voices", "", "voice source, overriding the context (directory or s3://bucket/prefix)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache", "", "snapshot cache directory, or \""+cli.CacheOff+"\"")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(voicesCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cacheCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the global configuration
func getConfig() *cli.Config {
	return globalConfig
}

// getContext returns the context to use. The --voices flag builds an
// unnamed context on the fly; --cache overrides the cache of either.
func getContext() (*cli.Context, error) {
	var ctx *cli.Context
	if voicesDir != "" {
		ctx = &cli.Context{Name: "default", Voices: voicesDir}
	} else {
		cfg := getConfig()
		if cfg == nil {
			return nil, fmt.Errorf("configuration not initialized")
		}
		var err error
		ctx, err = cfg.ResolveContext(contextName)
		if err != nil {
			if contextName == "" {
				return nil, fmt.Errorf("no context specified. Use -c or --voices, or set a default context with 'htsvoice config use-context'")
			}
			return nil, err
		}
		c := *ctx
		ctx = &c
	}
	if cacheDir != "" {
		ctx.Cache = cacheDir
	}
	return ctx, nil
}

// outputResult outputs the result using cli package
func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputPath,
	})
}
