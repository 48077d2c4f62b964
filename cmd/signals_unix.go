//go:build !windows

package cmd

import "syscall"

func init() {
	shutdownSignals = append(shutdownSignals, syscall.SIGTERM)
}
