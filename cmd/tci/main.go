// Command tci compiles and runs a small C subset against the cooperative
// kernel in internal/kernel. Built with cobra rather than the teacher's
// hand-rolled os.Args parsing, following caddyserver-caddy's cmd/caddy
// root-command-plus-flags pattern.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
