// cmd/ecdebug/root.go
package main

import (
	"github.com/spf13/cobra"
)

var (
	// Configuration file (replaces the connection flags)
	configPath string
	deviceID   string

	// Logging
	logLevel  string
	logFormat string

	// Connection flags
	chardevPath string
	portName    string
	baudRate    int
	tcpEndpoint string
	useModbus   bool
	unitID      uint8
	timeoutMs   int
	cmdOffset   uint16

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "ecdebug",
	Short: "Embedded Controller debug tool",
	Long: `ecdebug - talk to a ChromeOS-style Embedded Controller from the host.

Mirrors the EC console log, captures the EC panic record and reports
USB-PD port state and EC uptime.

Connection modes:
  Character device: --chardev /dev/cros_ec (default)
  Serial:           --port /dev/ttyUSB0 [--baud 115200]
  TCP bridge:       --tcp host:port
  WebSocket:        --url ws://host/path [--username user]
  Modbus gateway:   --modbus with --tcp host:port or --port /dev/ttyUSB0

With --config, devices come from a YAML file instead and --device selects
one of them.

For WebSocket authentication, the password is read from the ECDEBUG_PASSWORD
environment variable, or prompted interactively if not set.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&deviceID, "device", "d", "", "Device id (default: all, or the first for single-device commands)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")

	rootCmd.PersistentFlags().StringVar(&chardevPath, "chardev", "", "EC character device (default /dev/cros_ec)")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&tcpEndpoint, "tcp", "", "TCP packet bridge host:port")
	rootCmd.PersistentFlags().BoolVar(&useModbus, "modbus", false, "Reach the EC through a Modbus gateway")
	rootCmd.PersistentFlags().Uint8Var(&unitID, "unit-id", 1, "Modbus unit id")
	rootCmd.PersistentFlags().IntVar(&timeoutMs, "timeout-ms", 1000, "Per-command timeout in milliseconds")
	rootCmd.PersistentFlags().Uint16Var(&cmdOffset, "cmd-offset", 0, "Command offset for a secondary EC (e.g. 0x4000 for a PD MCU)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}
