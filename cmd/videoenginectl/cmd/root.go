package cmd

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	masterURL    string
	outputFormat string
	cfgFile      string
)

var rootCmd = &cobra.Command{
	Use:   "videoenginectl",
	Short: "CLI for the videoengine master/worker system",
	Long:  `videoenginectl submits jobs and inspects workers and ops against a videoengine master.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.videoengine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&masterURL, "master", "", "master API URL (default from config or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".videoengine"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("videoengine")
	viper.AutomaticEnv()
	viper.BindEnv("master_addr", "VIDEOENGINE_MASTER_ADDR")

	if err := viper.ReadInConfig(); err == nil {
		if masterURL == "" && viper.GetString("master_addr") != "" {
			masterURL = viper.GetString("master_addr")
		}
	}
	if masterURL == "" && viper.GetString("master_addr") != "" {
		masterURL = viper.GetString("master_addr")
	}
	if masterURL == "" {
		masterURL = "http://localhost:8080"
	}
}

// GetMasterURL returns the configured master URL with trailing slashes removed.
func GetMasterURL() string {
	return strings.TrimRight(masterURL, "/")
}

// IsJSONOutput reports whether JSON output was requested.
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// GetHTTPClient returns the client used for every master RPC.
func GetHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
