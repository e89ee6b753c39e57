package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/eil-protocol/eil-go/cmd"
	"github.com/eil-protocol/eil-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "EIL_CONFIG"
	ENV_DB_FILE_PATH     = "EIL_DB_FILE_PATH"
	ENV_HTTP_IP          = "EIL_HTTP_IP"
	ENV_HTTP_PORT        = "EIL_HTTP_PORT"
)

func main() {
	logconfig.ConfigInfoLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" && !cmd.FileExists(_config_file) {
		fmt.Printf("EIL configuration file not found: %s\n", _config_file)
		return
	}
	fmt.Printf("EIL configuration file = %s (empty = built-in demo chains)\n", _config_file)

	httpIP := viper.GetString(ENV_HTTP_IP)
	if httpIP == "" {
		httpIP = "0.0.0.0"
	}

	dsc := &cmd.DemoServerConfig{
		ConfigFilePath: _config_file,
		DbFilePath:     viper.GetString(ENV_DB_FILE_PATH),
		HttpIp:         httpIP,
		HttpPort:       viper.GetString(ENV_HTTP_PORT),
	}

	if err := cmd.StartDemoAndWait(dsc); err != nil {
		fmt.Printf("Demo failed: %s\n", err)
	}
}
