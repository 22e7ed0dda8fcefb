// Command tablesql executes statements of the restricted SQL dialect
// against an Azure Table storage account or a local emulator.
//
// Usage:
//
//	tablesql query people "SELECT TOP 5 Name FROM people WHERE Age > $1" --param int:21
//	tablesql exec people "INSERT INTO people (PartitionKey, RowKey, Name) VALUES ($1, $2, $3)" \
//	    --param p1 --param r1 --param Alice
//
// Credentials come from AZURE_STORAGE_ACCOUNT / AZURE_STORAGE_KEY (a .env
// file is honored) or from a YAML profile passed with --profile.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tablesql/tablesql"
	"github.com/tablesql/tablesql/types"
)

var (
	profilePath string
	rawParams   []string
)

func main() {
	root := &cobra.Command{
		Use:           "tablesql",
		Short:         "Run restricted SQL statements against Azure Table storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&profilePath, "profile", "", "YAML profile with account, key and optional endpoint")
	root.PersistentFlags().StringArrayVar(&rawParams, "param", nil,
		"positional statement parameter; prefix with int:, long:, double:, bool: or time: to type it")

	queryCmd := &cobra.Command{
		Use:   "query <table> <statement>",
		Short: "Execute a SELECT statement and print matched rows",
		Args:  cobra.ExactArgs(2),
		RunE:  runQuery,
	}

	execCmd := &cobra.Command{
		Use:   "exec <table> <statement>",
		Short: "Execute an INSERT, UPDATE or DELETE statement",
		Args:  cobra.ExactArgs(2),
		RunE:  runExec,
	}

	root.AddCommand(queryCmd, execCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tablesql:", err)
		os.Exit(1)
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	connection, params, err := prepare(args[0])
	if err != nil {
		return err
	}

	rows, err := connection.Query(cmd.Context(), args[1], params)
	if err != nil {
		return err
	}

	for _, row := range rows {
		parts := make([]string, 0, len(row.Fields)+1)
		parts = append(parts, "RowKey="+row.Index)

		for _, field := range row.Fields {
			parts = append(parts, field.Name+"="+field.Value.String())
		}

		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d row(s)\n", len(rows))

	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
	connection, params, err := prepare(args[0])
	if err != nil {
		return err
	}

	affected, err := connection.Exec(cmd.Context(), args[1], params)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", affected)

	return nil
}

func prepare(table string) (*tablesql.Connection, []types.DataType, error) {
	options, err := loadOptions()
	if err != nil {
		return nil, nil, err
	}

	params, err := parseParams(rawParams)
	if err != nil {
		return nil, nil, err
	}

	return tablesql.NewClient(options).Open(table), params, nil
}

func loadOptions() (tablesql.ConnectOptions, error) {
	if profilePath == "" {
		return tablesql.OptionsFromEnv()
	}

	raw, err := os.ReadFile(profilePath)
	if err != nil {
		return tablesql.ConnectOptions{}, fmt.Errorf("reading profile: %w", err)
	}

	var options tablesql.ConnectOptions
	if err := yaml.Unmarshal(raw, &options); err != nil {
		return tablesql.ConnectOptions{}, fmt.Errorf("parsing profile: %w", err)
	}

	if options.Account == "" || options.Key == "" {
		return tablesql.ConnectOptions{}, fmt.Errorf("profile %s must set account and key", profilePath)
	}

	return options, nil
}

// parseParams converts --param flags into typed statement parameters. An
// untyped flag is a string; a typed flag carries one of the kind prefixes.
func parseParams(raw []string) ([]types.DataType, error) {
	params := make([]types.DataType, 0, len(raw))

	for i, r := range raw {
		value, err := parseParam(r)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}

		params = append(params, value)
	}

	return params, nil
}

func parseParam(raw string) (types.DataType, error) {
	kind, rest, found := strings.Cut(raw, ":")
	if !found {
		return types.String(raw), nil
	}

	switch kind {
	case "int":
		v, err := strconv.ParseInt(rest, 10, 32)
		if err != nil {
			return types.DataType{}, fmt.Errorf("invalid int value %q", rest)
		}

		return types.Int32(int32(v)), nil
	case "long":
		v, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return types.DataType{}, fmt.Errorf("invalid long value %q", rest)
		}

		return types.Int64(v), nil
	case "double":
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return types.DataType{}, fmt.Errorf("invalid double value %q", rest)
		}

		return types.Float64(v), nil
	case "bool":
		v, err := strconv.ParseBool(rest)
		if err != nil {
			return types.DataType{}, fmt.Errorf("invalid bool value %q", rest)
		}

		return types.Boolean(v), nil
	case "time":
		if !strfmt.IsDateTime(rest) {
			return types.DataType{}, fmt.Errorf("invalid RFC3339 date-time %q", rest)
		}

		return types.Timestamp(rest), nil
	case "str":
		return types.String(rest), nil
	}

	// Unknown prefixes are plain strings; "a:b" stays "a:b".
	return types.String(raw), nil
}
