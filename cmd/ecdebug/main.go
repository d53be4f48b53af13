// cmd/ecdebug/main.go
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ecdebug:", err)
		os.Exit(1)
	}
}
