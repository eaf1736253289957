package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	initConfig()

	assert.False(t, viper.GetBool("debug"))
	assert.Equal(t, ":8080", viper.GetString("server.addr"))
	assert.Equal(t, ":9090", viper.GetString("exporter.addr"))
	assert.Equal(t, "thermhub", viper.GetString("auth.audience"))
	assert.Equal(t, "thermhub-readings", viper.GetString("kafka.topic"))
}

func TestRootCmd_Flags(t *testing.T) {
	for _, name := range []string{"config", "debug"} {
		require.NotNil(t, RootCmd.PersistentFlags().Lookup(name), name)
	}
	serve, _, err := RootCmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())
}
