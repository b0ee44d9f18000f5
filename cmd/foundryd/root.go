package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "foundryd",
	Short: "foundryd runs the workflow execution engine's HTTP API server",
	Long: `foundryd serves the Foundry workflow execution engine: compile
and run visual workflows, dispatch remote container steps, and route
GitHub-style issue automations.`,
	RunE: runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./foundryd.yaml)")
	rootCmd.PersistentFlags().String("listen-addr", "", "HTTP listen address (default :8080)")
	_ = viper.BindPFlag("listen_addr", rootCmd.PersistentFlags().Lookup("listen-addr"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("foundryd")
	}

	viper.SetEnvPrefix("FOUNDRYD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "foundryd: error reading config file:", err)
		}
	}
}
