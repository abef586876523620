package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/internal/auth"
	"github.com/TimurManjosov/konditional/rollout"
)

var bucketSalt string

var bucketCmd = &cobra.Command{
	Use:   "bucket <flag-key> <stable-id>",
	Short: "Compute the deterministic bucket for a stable id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket := rollout.Bucket(bucketSalt, args[0], args[1])
		if bucket == rollout.NoBucket {
			return fmt.Errorf("stable id must not be empty")
		}
		fmt.Printf("bucket: %d (%.2f%%)\n", bucket, float64(bucket)/100)
		return nil
	},
}

var flagsCmd = &cobra.Command{
	Use:   "flags <snapshot.json>",
	Short: "List the flags in a snapshot document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := decodeFile(args[0], codec.Options{MissingFlags: codec.MissingFlagFillDefaults})
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Key", "Kind", "Active", "Rules", "Salt"})
		table.SetBorder(false)
		for _, flag := range m.Snapshot().Flags() {
			table.Append([]string{
				string(flag.Feature()),
				string(flag.Kind()),
				fmt.Sprintf("%t", flag.Active()),
				fmt.Sprintf("%d", len(flag.Values())),
				flag.Salt(),
			})
		}
		table.Render()
		fmt.Printf("\n%d flags, tag %s\n", m.Snapshot().Len(), m.Snapshot().Tag())
		return nil
	},
}

var keyPrefix string

var keysCmd = &cobra.Command{
	Use:   "keys generate",
	Short: "Generate an API key and its bcrypt hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] != "generate" {
			return fmt.Errorf("unknown keys subcommand %q", args[0])
		}
		key, err := auth.GenerateAPIKey(keyPrefix)
		if err != nil {
			return err
		}
		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}
		fmt.Printf("key:  %s\nhash: %s\n", key, hash)
		return nil
	},
}

func init() {
	bucketCmd.Flags().StringVar(&bucketSalt, "salt", "v1", "bucketing salt")
	keysCmd.Flags().StringVar(&keyPrefix, "prefix", "kdl_", "key prefix")
}
