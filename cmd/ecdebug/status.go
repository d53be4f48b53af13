// cmd/ecdebug/status.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tamzrod/ecdebug/internal/status"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report device health, features and counters",
	Long: `Attach each device, run one console drain and print a status report.

Formats:
  text  aligned summary (default)
  yaml  one document with a sequence of devices
  cbor  deterministic CBOR array, for other tools`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "o", "text", "Output format: text, yaml, cbor")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusFormat {
	case "text", "yaml", "cbor":
	default:
		return fmt.Errorf("unknown format %q", statusFormat)
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	snaps := make([]status.Snapshot, 0, len(s.devices))
	for _, d := range s.devices {
		if p, ok := d.Console(); ok {
			p.ForceDrain()
		}
		d.Observe()
		snaps = append(snaps, d.Status())
	}

	switch statusFormat {
	case "yaml":
		out, err := status.EncodeYAML(snaps)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	case "cbor":
		out, err := status.EncodeCBOR(snaps)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	default:
		return status.WriteText(os.Stdout, snaps)
	}
}
