package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"nathanbeddoewebdev/hzdeploy/cmd/commands/auth"
	cfgcmd "nathanbeddoewebdev/hzdeploy/cmd/commands/config"
	"nathanbeddoewebdev/hzdeploy/cmd/commands/dns"
	"nathanbeddoewebdev/hzdeploy/cmd/commands/deploy"
	"nathanbeddoewebdev/hzdeploy/cmd/commands/manage"
	"nathanbeddoewebdev/hzdeploy/cmd/commands/provision"
	dnsproviders "nathanbeddoewebdev/hzdeploy/internal/dns/providers"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/providers"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "hzdeploy",
		Short: "Provision hardened Hetzner Cloud servers and deploy compose projects",
		Long: `hzdeploy creates Hetzner Cloud servers that are hardened on first boot,
waits until they accept SSH logins, and optionally copies files, runs a
startup script, registers a DNS record or starts a compose project.

Settings are read from the environment, a .env file in the working
directory, and preferences saved with 'hzdeploy config set'.

Quick start:
  hzdeploy auth login hetzner      # Store your API token
  hzdeploy provision               # Create a server from the environment
  hzdeploy deploy ./app            # Create a server and start ./app/compose.yaml
  hzdeploy manage list             # List all servers`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	cmd.PersistentFlags().String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("env-file", defaultEnvFile, "File of KEY=VALUE settings loaded into the environment")

	cmd.AddCommand(provision.NewCommand())
	cmd.AddCommand(deploy.NewCommand())
	cmd.AddCommand(manage.NewCommand())
	cmd.AddCommand(dns.NewCommand())
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())

	return cmd
}

// setup configures logging and loads the env file. Variables already in
// the environment are not overwritten. A missing default file is ignored.
func setup(cmd *cobra.Command, args []string) error {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidInput, levelStr)
	}
	zerolog.SetGlobalLevel(level)

	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
			return nil
		}
		return fmt.Errorf("%w: load %s: %v", domain.ErrInvalidInput, envFile, err)
	}
	log.Debug().Str("file", envFile).Msg("loaded environment file")
	return nil
}

func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	setupLogger()
	providers.RegisterHetzner()
	dnsproviders.RegisterPorkbun()
	dnsproviders.RegisterCloudflare()

	var root = rootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
