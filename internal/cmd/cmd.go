// Package cmd implements the thermhub command line interface.
package cmd

import (
	"errors"
	"log/slog"
	"os"

	"github.com/clambin/go-common/charmer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thermhub/thermhub/internal/cmd/serve"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "thermhub",
		Short: "Remote controller for networked thermostats",
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&serve.Cmd)
}

var arguments = charmer.Arguments{
	"debug":          charmer.Argument{Default: false, Help: "Log debug messages"},
	"server.addr":    charmer.Argument{Default: ":8080", Help: "Address of the API server"},
	"exporter.addr":  charmer.Argument{Default: ":9090", Help: "Address of the Prometheus exporter"},
	"health.addr":    charmer.Argument{Default: ":8081", Help: "Address of the /health endpoint"},
	"store.path":     charmer.Argument{Default: "thermhub.yaml", Help: "Path of the device store snapshot"},
	"auth.secret":    charmer.Argument{Default: "", Help: "JWT signing secret"},
	"auth.issuer":    charmer.Argument{Default: "https://thermhub.example.com/", Help: "JWT issuer"},
	"auth.audience":  charmer.Argument{Default: "thermhub", Help: "JWT audience"},
	"sheets.url":     charmer.Argument{Default: "", Help: "Override the schedule feed base URL"},
	"slack.token":    charmer.Argument{Default: "", Help: "Slack token"},
	"slack.channel":  charmer.Argument{Default: "", Help: "Slack channel for notifications"},
	"influx.url":     charmer.Argument{Default: "", Help: "InfluxDB server URL"},
	"influx.token":   charmer.Argument{Default: "", Help: "InfluxDB token"},
	"influx.org":     charmer.Argument{Default: "thermhub", Help: "InfluxDB organisation"},
	"influx.bucket":  charmer.Argument{Default: "readings", Help: "InfluxDB bucket"},
	"kafka.brokers":  charmer.Argument{Default: "", Help: "Kafka broker addresses (comma-separated)"},
	"kafka.topic":    charmer.Argument{Default: "thermhub-readings", Help: "Kafka topic for the reading ledger"},
	"mqtt.broker":    charmer.Argument{Default: "", Help: "MQTT broker URL"},
	"mqtt.client_id": charmer.Argument{Default: "thermhub", Help: "MQTT client ID"},
	"mqtt.username":  charmer.Argument{Default: "", Help: "MQTT username"},
	"mqtt.password":  charmer.Argument{Default: "", Help: "MQTT password"},
}

func initConfig() {
	// local development secrets
	_ = godotenv.Load()

	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/thermhub/")
		viper.AddConfigPath("$HOME/.thermhub")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), arguments); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("THERMHUB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
