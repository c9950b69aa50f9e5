package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/rateidea-agent/cmd"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(context.Canceled))
	assert.Equal(t, 0, exitCode(fmt.Errorf("run aborted: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("session failure")))
	assert.Equal(t, 1, exitCode(fmt.Errorf("bad config: %w", config.ErrConfiguration)))
}

func TestHandlePanic(t *testing.T) {
	t.Cleanup(resetMocks)

	t.Run("writes panic log and exits 1", func(t *testing.T) {
		var written []byte
		var path string
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path, written = name, data
			return nil
		}
		exitCodes := []int{}
		osExit = func(code int) { exitCodes = append(exitCodes, code) }

		func() {
			defer handlePanic()
			panic("chromedp: target crashed")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(written), "panic: chromedp: target crashed")
		assert.Contains(t, string(written), "goroutine", "the stack trace is included")
		assert.Equal(t, []int{1}, exitCodes)
	})

	t.Run("log write failure still exits 1", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }
		exitCodes := []int{}
		osExit = func(code int) { exitCodes = append(exitCodes, code) }

		func() {
			defer handlePanic()
			panic(errors.New("boom"))
		}()

		assert.Equal(t, []int{1}, exitCodes)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		called := false
		osWriteFile = func(string, []byte, os.FileMode) error {
			called = true
			return nil
		}
		osExit = func(int) { called = true }

		func() {
			defer handlePanic()
		}()

		assert.False(t, called)
	})
}

func TestMainExitStatus(t *testing.T) {
	t.Cleanup(resetMocks)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"interrupted", context.Canceled, 0},
		{"failure", errors.New("initial navigation failed"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execute = func(ctx context.Context) error {
				require.NotNil(t, ctx.Done(), "main passes a cancelable context")
				return tt.err
			}
			var got []int
			osExit = func(code int) { got = append(got, code) }

			main()

			assert.Equal(t, []int{tt.want}, got)
		})
	}
}
