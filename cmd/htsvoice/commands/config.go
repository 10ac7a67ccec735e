package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/storage"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

A context names a voice source (a local directory or s3://bucket/prefix),
the snapshot cache and defaults for synthesis.

Configuration is stored in ~/.giztoy/htsvoice/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  htsvoice config add-context local --voices ./voices
  htsvoice config add-context prod --voices s3://voices/prod --s3-region eu-west-1
  htsvoice config add-context minio --voices s3://voices --s3-endpoint http://localhost:9000 --cache disabled`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		if voicesDir == "" {
			return fmt.Errorf("--voices is required")
		}
		defaultVoice, err := cmd.Flags().GetString("default-voice")
		if err != nil {
			return fmt.Errorf("failed to read 'default-voice' flag: %w", err)
		}
		sampleRate, err := cmd.Flags().GetInt("sample-rate")
		if err != nil {
			return fmt.Errorf("failed to read 'sample-rate' flag: %w", err)
		}

		ctx := &cli.Context{
			Voices:       voicesDir,
			Cache:        cacheDir,
			DefaultVoice: defaultVoice,
			SampleRate:   sampleRate,
		}

		var s3cfg storage.S3Config
		for flag, dst := range map[string]*string{
			"s3-region":     &s3cfg.Region,
			"s3-endpoint":   &s3cfg.Endpoint,
			"s3-access-key": &s3cfg.AccessKey,
			"s3-secret-key": &s3cfg.SecretKey,
		} {
			if *dst, err = cmd.Flags().GetString(flag); err != nil {
				return fmt.Errorf("failed to read '%s' flag: %w", flag, err)
			}
		}
		if s3cfg != (storage.S3Config{}) {
			ctx.S3 = &s3cfg
		}

		cfg := getConfig()
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Context %q deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg := getConfig()
		if err := cfg.UseContext(name); err != nil {
			return err
		}

		cli.PrintSuccess("Switched to context %q", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Display the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
			return nil
		}

		fmt.Println(cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tVOICES\tCACHE\tDEFAULT VOICE")
		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			cache := ctx.Cache
			if cache == "" {
				cache = "(default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", current, name, ctx.Voices, cache, ctx.DefaultVoice)
		}
		return w.Flush()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		view := struct {
			CurrentContext string                  `json:"current_context" yaml:"current_context"`
			Contexts       map[string]*cli.Context `json:"contexts" yaml:"contexts"`
		}{
			CurrentContext: cfg.CurrentContext,
			Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
		}
		for name, ctx := range cfg.Contexts {
			c := *ctx
			if c.S3 != nil {
				s3cfg := *c.S3
				s3cfg.AccessKey = cli.MaskSecret(s3cfg.AccessKey)
				s3cfg.SecretKey = cli.MaskSecret(s3cfg.SecretKey)
				c.S3 = &s3cfg
			}
			view.Contexts[name] = &c
		}
		return outputResult(view, outputFile, outputJSON)
	},
}

func init() {
	// add-context also reads the global --voices and --cache flags.
	configAddContextCmd.Flags().String("default-voice", "", "voice used when a request names none")
	configAddContextCmd.Flags().Int("sample-rate", 0, "default output sample rate in Hz (0: voice rate)")
	configAddContextCmd.Flags().String("s3-region", "", "S3 region")
	configAddContextCmd.Flags().String("s3-endpoint", "", "S3-compatible endpoint URL")
	configAddContextCmd.Flags().String("s3-access-key", "", "S3 access key (default: $AWS_ACCESS_KEY_ID)")
	configAddContextCmd.Flags().String("s3-secret-key", "", "S3 secret key (default: $AWS_SECRET_ACCESS_KEY)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
