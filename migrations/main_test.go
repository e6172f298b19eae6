package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner records which commands reached it.
type stubRunner struct {
	calls []string
}

func (s *stubRunner) Up() error { s.calls = append(s.calls, "up"); return nil }

func (s *stubRunner) Down() error { s.calls = append(s.calls, "down"); return nil }

func (s *stubRunner) Status() error { s.calls = append(s.calls, "status"); return nil }

func (s *stubRunner) Version() error { s.calls = append(s.calls, "version"); return nil }

func (s *stubRunner) Verify(_ context.Context) error { s.calls = append(s.calls, "verify"); return nil }

func (s *stubRunner) Drop() error { s.calls = append(s.calls, "drop"); return nil }

func TestRunCommandDispatch(t *testing.T) {
	ctx := context.Background()

	for _, command := range []string{"up", "down", "status", "version", "verify"} {
		runner := &stubRunner{}

		require.NoError(t, runCommand(ctx, command, runner, strings.NewReader("")))
		assert.Equal(t, []string{command}, runner.calls)
	}
}

func TestRunCommandUnknown(t *testing.T) {
	runner := &stubRunner{}

	err := runCommand(context.Background(), "sideways", runner, strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "sideways"`)
	assert.Empty(t, runner.calls)
}

func TestRunCommandDropNeedsConfirmation(t *testing.T) {
	ctx := context.Background()

	runner := &stubRunner{}
	require.NoError(t, runCommand(ctx, "drop", runner, strings.NewReader("drop\n")))
	assert.Equal(t, []string{"drop"}, runner.calls)

	// Anything but the literal word cancels.
	runner = &stubRunner{}
	require.NoError(t, runCommand(ctx, "drop", runner, strings.NewReader("y\n")))
	assert.Empty(t, runner.calls)

	runner = &stubRunner{}
	require.NoError(t, runCommand(ctx, "drop", runner, strings.NewReader("")))
	assert.Empty(t, runner.calls)
}
