// cmd/ecdebug/query.go
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	panicRaw      bool
	uptimeVerbose bool
)

var pdinfoCmd = &cobra.Command{
	Use:   "pdinfo",
	Short: "Show USB-PD port status",
	Long: `Query each USB-PD port in order and print one line per port:

  p<n>: <state> en:<enabled> role:<role> pol:<polarity>

Querying stops at the first port the EC rejects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(quietConsole)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Print(s.first().PortStatus())
		return nil
	},
}

var uptimeCmd = &cobra.Command{
	Use:   "uptime",
	Short: "Show milliseconds since EC boot",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(quietConsole)
		if err != nil {
			return err
		}
		defer s.Close()

		d := s.first()
		if !uptimeVerbose {
			out, err := d.Uptime()
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		}

		info, err := d.UptimeInfo()
		if err != nil {
			return err
		}
		fmt.Printf("time since EC boot: %d ms\n", info.TimeSinceECBootMs)
		fmt.Printf("AP resets since EC boot: %d\n", info.APResetsSinceECBoot)
		fmt.Printf("EC reset flags: 0x%08x\n", info.ECResetFlags)
		for i, r := range info.RecentAPResets {
			if r.ResetTimeMs == 0 && r.ResetCause == 0 {
				continue
			}
			fmt.Printf("recent AP reset %d: cause 0x%04x at %d ms\n", i, r.ResetCause, r.ResetTimeMs)
		}
		return nil
	},
}

var panicinfoCmd = &cobra.Command{
	Use:   "panicinfo",
	Short: "Show the panic record captured at attach",
	Long: `Print the EC panic record as a hex dump, or the raw bytes with --raw.
Exits with an error when the EC has no panic recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(quietConsole)
		if err != nil {
			return err
		}
		defer s.Close()

		d := s.first()
		info, ok := d.PanicInfo()
		if !ok {
			return fmt.Errorf("device %s: no panic recorded", d.ID())
		}
		if panicRaw {
			_, err := os.Stdout.Write(info)
			return err
		}
		fmt.Print(hex.Dump(info))
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Show what each device supports",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(nil)
		if err != nil {
			return err
		}
		defer s.Close()

		for i, d := range s.devices {
			if i > 0 {
				fmt.Println()
			}
			f := d.Features()
			ch := d.Channel()
			fmt.Printf("device: %s\n", d.ID())
			fmt.Printf("limits: request %d, response %d bytes\n", ch.MaxRequest(), ch.MaxResponse())
			if off := ch.CommandOffset(); off != 0 {
				fmt.Printf("command offset: 0x%04x\n", off)
			}
			fmt.Printf("console log (CONSOLE_READ v1): %t\n", f.ConsoleReadV1)
			fmt.Printf("uptime: %t\n", f.Uptime)
			fmt.Printf("panic recorded: %t\n", f.PanicInfo)

			var names []string
			for _, e := range d.Endpoints() {
				names = append(names, string(e))
			}
			fmt.Printf("endpoints: %s\n", strings.Join(names, " "))
		}
		return nil
	},
}

func init() {
	panicinfoCmd.Flags().BoolVar(&panicRaw, "raw", false, "Write raw bytes instead of a hex dump")
	uptimeCmd.Flags().BoolVarP(&uptimeVerbose, "verbose", "v", false, "Include AP reset history and reset flags")

	rootCmd.AddCommand(pdinfoCmd, uptimeCmd, panicinfoCmd, probeCmd)
}
