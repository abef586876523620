package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/internal/flags"
)

var validateSkipUnknown bool

var validateCmd = &cobra.Command{
	Use:   "validate <snapshot.json>",
	Short: "Validate a snapshot document against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := codec.Options{MissingFlags: codec.MissingFlagFillDefaults}
		if validateSkipUnknown {
			opts.UnknownKeys = codec.UnknownKeySkip
		}
		m, err := decodeFile(args[0], opts)
		if err != nil {
			return err
		}
		fmt.Printf("OK: %d flags, tag %s\n", m.Snapshot().Len(), m.Snapshot().Tag())
		return nil
	},
}

var encodeOut string

var encodeCmd = &cobra.Command{
	Use:   "encode <snapshot.json>",
	Short: "Normalize a snapshot document into canonical encoding",
	Long:  "encode decodes a snapshot and re-encodes it deterministically: flags sorted by feature ID, sets as sorted arrays.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := decodeFile(args[0], codec.Options{MissingFlags: codec.MissingFlagFillDefaults})
		if err != nil {
			return err
		}
		data, err := codec.Encode(m.Snapshot())
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if encodeOut == "" || encodeOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(encodeOut, data, 0o644)
	},
}

var patchOut string

var patchCmd = &cobra.Command{
	Use:   "patch <snapshot.json> <patch.json>",
	Short: "Apply a patch document to a snapshot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := decodeFile(args[0], codec.Options{MissingFlags: codec.MissingFlagFillDefaults})
		if err != nil {
			return err
		}
		patchData, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		patched, err := codec.ApplyPatch(m.Snapshot(), flags.Namespace, patchData,
			codec.Options{MissingFlags: codec.MissingFlagFillDefaults})
		if err != nil {
			return err
		}
		data, err := codec.Encode(patched.Snapshot())
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if patchOut == "" || patchOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(patchOut, data, 0o644)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateSkipUnknown, "skip-unknown", false, "skip unknown feature keys instead of failing")
	encodeCmd.Flags().StringVarP(&encodeOut, "out", "o", "-", "output file (- for stdout)")
	patchCmd.Flags().StringVarP(&patchOut, "out", "o", "-", "output file (- for stdout)")
}
