package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/colorgan/internal/config"
	"github.com/born-ml/colorgan/internal/envconfig"
)

const version = "v0.1.0-dev"

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "colorgan",
		Short:         "Train and run a GAN that colorizes greyscale images",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")

	envVars := envconfig.AsMap()
	trainCmd := newTrainCmd()
	colorizeCmd := newColorizeCmd()
	historyCmd := newHistoryCmd()

	appendEnvDocs(trainCmd, []envconfig.EnvVar{
		envVars["COLORGAN_DEBUG"],
		envVars["COLORGAN_DATA"],
		envVars["COLORGAN_OUTPUT"],
		envVars["COLORGAN_WORKERS"],
		envVars["COLORGAN_GPU"],
	})
	appendEnvDocs(colorizeCmd, []envconfig.EnvVar{
		envVars["COLORGAN_DEBUG"],
		envVars["COLORGAN_OUTPUT"],
		envVars["COLORGAN_WORKERS"],
		envVars["COLORGAN_GPU"],
	})
	appendEnvDocs(historyCmd, []envconfig.EnvVar{envVars["COLORGAN_OUTPUT"]})

	rootCmd.AddCommand(trainCmd, colorizeCmd, historyCmd, newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run:   versionHandler,
	}
}

func versionHandler(cmd *cobra.Command, _ []string) {
	cmd.Printf("colorgan version %s\n", version)
}

// loadConfig reads --config, then applies environment overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}
