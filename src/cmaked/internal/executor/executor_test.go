package executor

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// Instantiates the new Executor through fx provider
func fxExecutor(t *testing.T) (Executor, *observer.ObservedLogs) {
	var e Executor
	core, recorded := observer.New(zap.InfoLevel)
	logger := zap.New(core).Sugar()

	fxtest.New(t,
		fx.Provide(
			func() Executor {
				return NewExecutor(WithLogger(logger))
			},
		),
		fx.Populate(&e),
	).RequireStart().RequireStop()

	return e, recorded
}

func TestRun(t *testing.T) {
	e, recorded := fxExecutor(t)

	t.Run("success", func(t *testing.T) {
		binPath, err := exec.LookPath("true")
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("no true available")
		}
		require.NoError(t, err)

		cmd := exec.Command("true", "1", "2")
		cmd.Dir = "/"
		_, _, exitCode, err := e.Run(cmd)
		assert.NoError(t, err)
		assert.Equal(t, 0, exitCode)

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, map[string]interface{}{
			"Path": binPath,
			"Dir":  "/",
			"Args": []interface{}{"1", "2"},
		}, logs[0].ContextMap())
	})

	t.Run("nonzero exit", func(t *testing.T) {
		_, err := exec.LookPath("false")
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("no false available")
		}
		require.NoError(t, err)

		_, _, exitCode, err := e.Run(exec.Command("false"))
		assert.Error(t, err)
		assert.Equal(t, 1, exitCode)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, _, exitCode, err := e.Run(exec.Command("/nonexistent/binary"))
		assert.Error(t, err)
		assert.Equal(t, -1, exitCode)
	})
}

func TestStart(t *testing.T) {
	e, recorded := fxExecutor(t)

	t.Run("start and wait", func(t *testing.T) {
		_, err := exec.LookPath("true")
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("no true available")
		}
		require.NoError(t, err)

		p, err := e.Start(exec.Command("true"), []string{"KEY1=VAL1"})
		require.NoError(t, err)
		assert.Greater(t, p.Pid(), 0)
		assert.NoError(t, p.Wait())

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "Exec", logs[0].Message)
	})

	t.Run("start failure", func(t *testing.T) {
		_, err := e.Start(exec.Command("/nonexistent/binary"), nil)
		assert.Error(t, err)
	})

	t.Run("kill", func(t *testing.T) {
		_, err := exec.LookPath("sleep")
		if errors.Is(err, exec.ErrNotFound) {
			t.Skip("no sleep available")
		}
		require.NoError(t, err)

		p, err := e.Start(exec.Command("sleep", "60"), nil)
		require.NoError(t, err)
		require.NoError(t, p.Kill())
		assert.Error(t, p.Wait())
	})
}
