package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/sharebot/core/buildinfo"
	corecmd "github.com/m3rciful/sharebot/core/cmd"
	"github.com/m3rciful/sharebot/internal/app"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		envFile    string
	)
	root := &cobra.Command{
		Use:           "sharebot",
		Short:         "Telegram bot that turns uploaded media into expiring share links.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil {
				if !os.IsNotExist(err) {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
				log.Printf("no %s file found, using environment variables directly", envFile)
			}
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return app.LoadConfig(path)
				},
				Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					c, ok := cfg.(*app.Config)
					if !ok {
						return nil, fmt.Errorf("unexpected config type %T", cfg)
					}
					return app.Bootstrap(c)
				},
			})
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")
	root.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String("sharebot"))
		},
	}
}
