package tablesql

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding account credentials.
const (
	EnvAccount  = "AZURE_STORAGE_ACCOUNT"
	EnvKey      = "AZURE_STORAGE_KEY"
	EnvEndpoint = "AZURE_TABLE_ENDPOINT"
)

// ConnectOptions carries the credentials and endpoint of one storage
// account. Endpoint is optional and overrides the default
// https://<account>.table.core.windows.net, which points statements at a
// local emulator.
type ConnectOptions struct {
	Account  string `yaml:"account"`
	Key      string `yaml:"key"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// OptionsFromEnv loads connection options from the environment. A .env file
// in the working directory is loaded first when present; real environment
// variables win over .env entries.
func OptionsFromEnv() (ConnectOptions, error) {
	// Ignore a missing .env file; the environment may be set directly.
	_ = godotenv.Load()

	options := ConnectOptions{
		Account:  os.Getenv(EnvAccount),
		Key:      os.Getenv(EnvKey),
		Endpoint: os.Getenv(EnvEndpoint),
	}

	if options.Account == "" {
		return ConnectOptions{}, fmt.Errorf("%s is not set", EnvAccount)
	}

	if options.Key == "" {
		return ConnectOptions{}, fmt.Errorf("%s is not set", EnvKey)
	}

	return options, nil
}
