package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/m3rciful/recipebot/core/buildinfo"
	corecmd "github.com/m3rciful/recipebot/core/cmd"
	coreconfig "github.com/m3rciful/recipebot/core/config"
	"github.com/m3rciful/recipebot/internal/app"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recipebot",
		Short:         "Telegram recipe book bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	run := runCmd()
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run, versionCmd(), configCmd(), tokenCmd())
	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				EnvFile:           envFile,
				LoadConfig:        loadConfig,
				Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					appCfg, ok := cfg.(*app.Config)
					if !ok {
						return nil, fmt.Errorf("unexpected config type %T", cfg)
					}
					return app.Bootstrap(appCfg)
				},
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("env-file", defaultEnvFile, "Dotenv file loaded before the config")
	return cmd
}

func loadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	check := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration without starting the bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := corecmd.LoadEnvFile(envFile); err != nil {
				return err
			}
			path, err := corecmd.ResolveConfigPath(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
			})
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:   %s\n", path)
			fmt.Fprintf(out, "run_mode: %s\n", cfg.Telegram.RunMode)
			fmt.Fprintf(out, "catalog:  %s\n", cfg.Catalog.Source)
			if cfg.Metrics.Listen != "" {
				fmt.Fprintf(out, "metrics:  %s%s\n", cfg.Metrics.Listen, cfg.Metrics.Path)
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
	check.Flags().StringP("config", "c", "", "Path to configuration file")
	check.Flags().String("env-file", defaultEnvFile, "Dotenv file loaded before the config")
	cmd.AddCommand(check)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the bot token in the OS keyring",
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the bot token read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, _ := cmd.Flags().GetString("service")
			user, _ := cmd.Flags().GetString("user")
			token, err := readToken(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := coreconfig.StoreToken(service, user, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token stored in keyring service %q\n", service)
			return nil
		},
	}
	set.Flags().String("service", "recipebot", "Keyring service name")
	set.Flags().String("user", "", "Keyring user (default bot_token)")
	cmd.AddCommand(set)
	return cmd
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("empty token on stdin")
	}
	return token, nil
}
