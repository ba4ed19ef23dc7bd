package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	testlogr "github.com/alphabill-org/guild/internal/testutils/logger"
)

type testConsoleWriter struct {
	mu    sync.Mutex
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := fmt.Sprintln(a...)
	w.lines = append(w.lines, s[:len(s)-1])
}

func (w *testConsoleWriter) Printf(format string, a ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, strings.TrimSuffix(fmt.Sprintf(format, a...), "\n"))
}

func (w *testConsoleWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.lines...)
}

// captureOutput replaces the console writer for the duration of the test.
func captureOutput(t *testing.T) *testConsoleWriter {
	w := &testConsoleWriter{}
	orig := consoleWriter
	consoleWriter = w
	t.Cleanup(func() { consoleWriter = orig })
	return w
}

// execute runs the guild command with given arguments.
func execute(ctx context.Context, t *testing.T, args ...string) error {
	app := New(testlogr.LoggerBuilder(t))
	app.baseCmd.SetArgs(args)
	return app.Execute(ctx)
}
