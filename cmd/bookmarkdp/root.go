package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time.
var version = "dev"

// envPrefix prefixes the environment variables read by viper.
const envPrefix = "BOOKMARKDP"

// newRootCmd creates the bookmarkdp command tree. Each tree owns its own
// viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "bookmarkdp",
		Short:         "Collect bookmarked posts from a remote-debuggable browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./bookmarkdp.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	if err := v.BindPFlag("debug", flags.Lookup("debug")); err != nil {
		panic(err)
	}

	cmd.AddCommand(newScrapeCmd(v))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookmarkdp %s\n", version)
		},
	})
	return cmd
}

// initConfig loads .env, then wires environment variables and the config
// file into v. Flags set on the command line take precedence over both.
func initConfig(v *viper.Viper, cfgFile string) error {
	// a missing .env is fine
	_ = godotenv.Load()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("bookmarkdp")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}
