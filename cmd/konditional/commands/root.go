// Package commands implements the konditional CLI command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/internal/flags"
)

var rootCmd = &cobra.Command{
	Use:           "konditional",
	Short:         "Operate konditional snapshot documents",
	Long:          "konditional validates, normalizes, and patches feature-flag snapshot documents for the application namespace.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(bucketCmd)
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(keysCmd)
}

// decodeFile decodes a snapshot document from disk against the
// compiled schema.
func decodeFile(path string, opts codec.Options) (*codec.Materialized, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := codec.Decode(data, flags.Namespace, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return m, nil
}
