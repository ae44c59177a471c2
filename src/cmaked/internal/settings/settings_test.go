package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/config"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func newStore(t *testing.T, path string) *store {
	t.Helper()

	provider, err := config.NewYAML(config.Source(strings.NewReader("settings:\n  path: " + path + "\n")))
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	s, err := New(Params{
		Config:    provider,
		Lifecycle: lc,
		Logger:    zap.NewNop().Sugar(),
	})
	require.NoError(t, err)

	require.NoError(t, lc.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, lc.Stop(context.Background())) })

	return s.(*store)
}

func writeSettings(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmaked-settings.yaml")
	writeSettings(t, path, `
environment:
  CC: clang
configureEnvironment:
  CMAKE_PREFIX_PATH: /opt/deps
buildEnvironment:
  MAKEFLAGS: -j8
sourceDirectory: /workspace/demo
`)

	s := newStore(t, path)
	assert.Equal(t, map[string]string{"CC": "clang"}, s.Environment())
	assert.Equal(t, map[string]string{"CMAKE_PREFIX_PATH": "/opt/deps"}, s.ConfigureEnvironment())
	assert.Equal(t, map[string]string{"MAKEFLAGS": "-j8"}, s.BuildEnvironment())
	assert.Equal(t, "/workspace/demo", s.SourceDirectory())
}

func TestMissingFileYieldsEmptySettings(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, filepath.Join(dir, "cmaked-settings.yaml"))
	assert.Empty(t, s.Environment())
	assert.Empty(t, s.SourceDirectory())
}

func TestOnChangeFiresForChangedSettingOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmaked-settings.yaml")
	writeSettings(t, path, "environment:\n  CC: gcc\n")

	s := newStore(t, path)

	var envChanges, sourceChanges atomic.Int32
	s.OnChange(KeyEnvironment, func() { envChanges.Inc() })
	s.OnChange(KeySourceDirectory, func() { sourceChanges.Inc() })

	writeSettings(t, path, "environment:\n  CC: clang\n")

	require.Eventually(t, func() bool {
		return envChanges.Load() >= 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), sourceChanges.Load())
	assert.Equal(t, map[string]string{"CC": "clang"}, s.Environment())
}

func TestOnChangeCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmaked-settings.yaml")
	writeSettings(t, path, "sourceDirectory: /a\n")

	s := newStore(t, path)

	var fired atomic.Int32
	cancel := s.OnChange(KeySourceDirectory, func() { fired.Inc() })
	cancel()

	// reload directly to avoid racing the watcher
	writeSettings(t, path, "sourceDirectory: /b\n")
	s.reload()

	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, "/b", s.SourceDirectory())
}

func TestMalformedFileKeepsPreviousContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmaked-settings.yaml")
	writeSettings(t, path, "environment:\n  CC: gcc\n")

	s := newStore(t, path)

	writeSettings(t, path, "environment: [not: a: map\n")
	s.reload()

	assert.Equal(t, map[string]string{"CC": "gcc"}, s.Environment())
}

func TestFailsWithoutConfiguredPath(t *testing.T) {
	provider, err := config.NewYAML(config.Source(strings.NewReader("settings: {}")))
	require.NoError(t, err)

	_, err = New(Params{
		Config:    provider,
		Lifecycle: fxtest.NewLifecycle(t),
		Logger:    zap.NewNop().Sugar(),
	})
	assert.Error(t, err)
}
