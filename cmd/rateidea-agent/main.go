// File: cmd/rateidea-agent/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	// Schedules may name any IANA zone; embed the database for minimal hosts.
	_ "time/tzdata"

	"github.com/xkilldash9x/rateidea-agent/cmd"
	"github.com/xkilldash9x/rateidea-agent/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables so tests can observe the exit path.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

func main() {
	// The sentinel: anything that escapes the command tree ends up in panic.log.
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(exitCode(execute(ctx)))
}

// exitCode maps the command result onto the process status. An interrupt is a
// clean shutdown.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}

// handlePanic records a panic and exits with status 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}
	fmt.Fprintf(os.Stderr, "rateidea-agent crashed. Details logged to %s\n", panicLogFile)
	osExit(1)
}
