//go:build !windows

package main

import (
	"os"
	"syscall"
)

// toggleSignals pause and resume the session.
var toggleSignals = []os.Signal{syscall.SIGUSR1}
