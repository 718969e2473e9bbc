package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/config"
	"github.com/koman-maciej/insurance/internal/logging"
)

// annotationSkipConfig marks commands that run without loading configuration.
const annotationSkipConfig = "policygate/skip-config"

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "policygate",
	Short: "Access gateway for the insurance user and policy collections",
	Long: `policygate issues OAuth2 access tokens for registered clients and serves
role-gated REST lookups over the upstream user and policy collections.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[annotationSkipConfig] == "true" {
			return nil
		}

		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().String("server-addr", "", "Public listener address (env: POLICYGATE_SERVER_ADDR)")
	rootCmd.PersistentFlags().String("internal-addr", "", "Internal listener address (env: POLICYGATE_SERVER_INTERNAL_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: POLICYGATE_DEBUG)")

	_ = viper.BindPFlag("server.addr", rootCmd.PersistentFlags().Lookup("server-addr"))
	_ = viper.BindPFlag("server.internal_addr", rootCmd.PersistentFlags().Lookup("internal-addr"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
