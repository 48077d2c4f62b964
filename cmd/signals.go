package cmd

import "os"

// shutdownSignals lists the OS signals that trigger graceful shutdown.
// SIGTERM is appended by signals_unix.go on non-Windows platforms.
var shutdownSignals = []os.Signal{os.Interrupt}
