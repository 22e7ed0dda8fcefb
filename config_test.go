package tablesql

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOptionsFromEnv(t *testing.T) {
	c := require.New(t)

	t.Setenv(EnvAccount, "myaccount")
	t.Setenv(EnvKey, "bXlrZXk=")
	t.Setenv(EnvEndpoint, "http://localhost:10002")

	options, err := OptionsFromEnv()
	c.NoError(err)

	c.Equal("myaccount", options.Account)
	c.Equal("bXlrZXk=", options.Key)
	c.Equal("http://localhost:10002", options.Endpoint)
}

func TestOptionsFromEnvMissingCredentials(t *testing.T) {
	c := require.New(t)

	t.Setenv(EnvAccount, "")
	t.Setenv(EnvKey, "bXlrZXk=")

	_, err := OptionsFromEnv()
	c.Error(err)
	c.Contains(err.Error(), EnvAccount)

	t.Setenv(EnvAccount, "myaccount")
	t.Setenv(EnvKey, "")

	_, err = OptionsFromEnv()
	c.Error(err)
	c.Contains(err.Error(), EnvKey)
}

func TestConnectOptionsYAML(t *testing.T) {
	c := require.New(t)

	profile := []byte("account: myaccount\nkey: bXlrZXk=\nendpoint: http://localhost:10002\n")

	var options ConnectOptions
	c.NoError(yaml.Unmarshal(profile, &options))

	c.Equal(ConnectOptions{
		Account:  "myaccount",
		Key:      "bXlrZXk=",
		Endpoint: "http://localhost:10002",
	}, options)
}
