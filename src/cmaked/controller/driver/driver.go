// Package driver orchestrates configure, clean, and restart operations
// against the cmake configuration server and publishes the derived views
// (targets, cache, code model) consumed by the rest of the system.
package driver

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/cmake-driver/src/cmaked/entity"
	cmakeserver "github.com/uber/cmake-driver/src/cmaked/gateway/cmake-server"
	"github.com/uber/cmake-driver/src/cmaked/internal/errors"
	"github.com/uber/cmake-driver/src/cmaked/internal/fs"
	"github.com/uber/cmake-driver/src/cmaked/internal/inputfiles"
	"github.com/uber/cmake-driver/src/cmaked/internal/notifier"
	"github.com/uber/cmake-driver/src/cmaked/internal/settings"
	"github.com/uber/cmake-driver/src/cmaked/mapper"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"go.uber.org/atomic"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey       = "driver"
	_configKey     = "driver"
	_signalDirty   = "dirty"
	_cacheFileName = "CMakeCache.txt"
	_cacheDirName  = "CMakeFiles"
)

// State identifies the driver's position in its operation lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateConfiguring
	StateBuilding
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateConfiguring:
		return "configuring"
	case StateBuilding:
		return "building"
	case StateRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Controller is the driver state machine.
type Controller interface {
	// Configure runs a configure followed by a compute against the cmake
	// server, refreshing all derived views on success. A server-reported
	// configure failure is logged and yields a nonzero exit code without an
	// error; anything that leaves the driver inconsistent propagates.
	Configure(ctx context.Context, args []string, consumer io.Writer) (int, error)
	// CleanConfigure shuts down the current client, removes prior
	// configuration artifacts, and configures from scratch.
	CleanConfigure(ctx context.Context, args []string, consumer io.Writer) (int, error)
	// NeedsReconfigure reports whether the generated build system is stale.
	NeedsReconfigure() bool

	SetKit(ctx context.Context, apply func(*entity.Kit) error) error
	SetConfigurePreset(ctx context.Context, needsClean bool, apply func(*entity.ConfigurePreset) error) error
	SetBuildPreset(apply func(*entity.BuildPreset) error) error
	SetTestPreset(apply func(*entity.TestPreset) error) error

	// Stop shuts down the live client and returns the driver to its
	// uninitialized state. The driver remains usable; the next operation
	// starts a fresh client.
	Stop(ctx context.Context) error

	Targets() []entity.RichTarget
	ExecutableTargets() []entity.RichTarget
	UniqueTargets() []entity.RichTarget
	CacheEntries() map[string]entity.CacheEntry
	CMakeFiles() []string
	GeneratorName() string
	State() State

	OnMessage(fn func(string)) (cancel func())
	OnProgress(fn func(entity.Progress)) (cancel func())
	OnCodeModelChanged(fn func(*entity.CodeModel)) (cancel func())
}

type driverConfig struct {
	SourceDirectory string `yaml:"sourceDirectory"`
	BinaryDirectory string `yaml:"binaryDirectory"`
	CMakePath       string `yaml:"cmakePath"`
	Generator       string `yaml:"generator"`
}

// Params defines the dependencies that will be available to this controller.
type Params struct {
	fx.In

	Logger    *zap.SugaredLogger
	Config    config.Provider
	Stats     tally.Scope
	FS        fs.DriverFS
	Settings  settings.Store
	Servers   cmakeserver.Starter
	Lifecycle fx.Lifecycle `optional:"true"`
}

type controller struct {
	logger   *zap.SugaredLogger
	stats    tally.Scope
	fs       fs.DriverFS
	settings settings.Store
	servers  cmakeserver.Starter
	cfg      driverConfig

	// queue serializes every operation that may touch the client. A restart
	// always waits for any in-flight restart or configure, so two
	// connections are never live at once.
	queue *taskQueue

	// client is only touched from queue tasks.
	client        cmakeserver.Client
	clientCancels []func()

	state         *atomic.Int32
	configChanged *atomic.Bool

	mu            sync.Mutex
	kit           *entity.Kit
	cfgPreset     *entity.ConfigurePreset
	buildPreset   *entity.BuildPreset
	testPreset    *entity.TestPreset
	inputs        *inputfiles.Set
	cache         *entity.CacheModel
	codeModel     *entity.CodeModel
	generatorName string

	messages        *notifier.Emitter[string]
	progress        *notifier.Emitter[entity.Progress]
	codeModelEvents *notifier.Emitter[*entity.CodeModel]
}

// New creates the driver controller and begins observing settings changes.
func New(p Params) (Controller, error) {
	c := &controller{
		logger:          p.Logger.With("component", _nameKey),
		stats:           p.Stats.SubScope(_nameKey),
		fs:              p.FS,
		settings:        p.Settings,
		servers:         p.Servers,
		queue:           newTaskQueue(),
		state:           atomic.NewInt32(int32(StateUninitialized)),
		configChanged:   atomic.NewBool(false),
		messages:        notifier.NewEmitter[string](),
		progress:        notifier.NewEmitter[entity.Progress](),
		codeModelEvents: notifier.NewEmitter[*entity.CodeModel](),
	}

	if err := p.Config.Get(_configKey).Populate(&c.cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if c.cfg.CMakePath == "" {
		c.cfg.CMakePath = "cmake"
	}

	for _, key := range []string{settings.KeyEnvironment, settings.KeyConfigureEnvironment} {
		p.Settings.OnChange(key, c.onEnvironmentChanged)
	}
	p.Settings.OnChange(settings.KeySourceDirectory, c.onSourceDirectoryChanged)

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return c.close(ctx) },
		})
	}

	return c, nil
}

func (c *controller) Configure(ctx context.Context, args []string, consumer io.Writer) (int, error) {
	code := -1
	err := c.queue.run(ctx, func() error {
		var err error
		code, err = c.doConfigure(ctx, args, consumer)
		return err
	})
	return code, err
}

func (c *controller) CleanConfigure(ctx context.Context, args []string, consumer io.Writer) (int, error) {
	code := -1
	err := c.queue.run(ctx, func() error {
		c.shutdownClient(ctx)
		if err := c.removeArtifacts(); err != nil {
			return err
		}
		var err error
		code, err = c.doConfigure(ctx, args, consumer)
		return err
	})
	return code, err
}

func (c *controller) doConfigure(ctx context.Context, args []string, consumer io.Writer) (int, error) {
	c.setState(StateConfiguring)
	defer func() {
		if c.client != nil {
			c.setState(StateReady)
		} else {
			c.setState(StateUninitialized)
		}
	}()

	cl, err := c.acquireClient(ctx)
	if err != nil {
		return -1, err
	}

	sw := c.stats.Timer("configure_latency").Start()
	defer sw.Stop()

	if err := cl.Configure(ctx, c.configureArguments(args)); err != nil {
		return c.configureFailed(err, consumer)
	}
	if err := cl.Compute(ctx); err != nil {
		return c.configureFailed(err, consumer)
	}
	if err := c.refresh(ctx, cl); err != nil {
		return -1, err
	}

	c.configChanged.Store(false)
	c.stats.Counter("configure_success").Inc(1)
	return 0, nil
}

// configureFailed maps a failed configure or compute request to the driver's
// error policy: server-reported errors are recovered with a nonzero exit
// code, everything else propagates.
func (c *controller) configureFailed(err error, consumer io.Writer) (int, error) {
	c.stats.Counter("configure_failure").Inc(1)

	var serverErr *errors.ServerError
	if stderr.As(err, &serverErr) {
		c.logger.Errorw("cmake server rejected the configure request",
			zap.String("method", serverErr.Method),
			zap.String("message", serverErr.Message))
		if consumer != nil {
			fmt.Fprintln(consumer, serverErr.Message)
		}
		return 1, nil
	}

	if stderr.Is(err, errors.ErrConnectionLost) {
		c.dropClient()
	}
	return -1, err
}

// refresh re-derives every published view from the server after a successful
// configure. The new snapshots are swapped in atomically.
func (c *controller) refresh(ctx context.Context, cl cmakeserver.Client) error {
	inputsReply, err := cl.CMakeInputs(ctx)
	if err != nil {
		return fmt.Errorf("fetching cmake inputs: %w", err)
	}
	snapshot := inputfiles.Snapshot(c.fs, inputPaths(inputsReply), c.sourceDirectory(), c.binaryDirectory())

	cacheReply, err := cl.Cache(ctx)
	if err != nil {
		return fmt.Errorf("fetching cache: %w", err)
	}
	cache, dropped := mapper.CacheFromServer(cacheReply)
	for _, dropErr := range dropped {
		c.logger.Warnw("dropping cache entry", zap.Error(dropErr))
		c.stats.Counter("cache_entries_dropped").Inc(1)
	}

	codeModelReply, err := cl.CodeModel(ctx)
	if err != nil {
		return fmt.Errorf("fetching code model: %w", err)
	}
	codeModel := mapper.CodeModelFromServer(codeModelReply)

	globalSettings, err := cl.GlobalSettings(ctx)
	if err != nil {
		return fmt.Errorf("fetching global settings: %w", err)
	}

	c.mu.Lock()
	c.inputs = snapshot
	c.cache = cache
	c.codeModel = codeModel
	c.generatorName = globalSettings.Generator
	c.mu.Unlock()

	c.codeModelEvents.Publish(codeModel)
	return nil
}

// inputPaths flattens a cmakeInputs reply into the tracked file list,
// skipping the server's temporary files and resolving relative paths against
// the reported source directory.
func inputPaths(reply *model.CMakeInputsReply) []string {
	var out []string
	for _, group := range reply.BuildFiles {
		if group.IsTemporary {
			continue
		}
		for _, src := range group.Sources {
			if !filepath.IsAbs(src) {
				src = filepath.Join(reply.SourceDirectory, src)
			}
			out = append(out, src)
		}
	}
	return out
}

func (c *controller) NeedsReconfigure() bool {
	c.mu.Lock()
	inputs := c.inputs
	c.mu.Unlock()

	// Pure disjunction: the settings-changed flag and the file snapshot are
	// independent triggers with no precedence between them.
	return c.configChanged.Load() || inputs == nil || inputs.OutOfDate()
}

func (c *controller) SetKit(ctx context.Context, apply func(*entity.Kit) error) error {
	return c.queue.run(ctx, func() error {
		c.invalidateInputs()

		c.mu.Lock()
		kit := entity.Kit{}
		if c.kit != nil {
			kit = *c.kit
		}
		c.mu.Unlock()

		if err := apply(&kit); err != nil {
			return err
		}

		c.mu.Lock()
		c.kit = &kit
		c.mu.Unlock()

		if c.resolveGenerator() == "" {
			return errors.ErrNoGenerator
		}
		if c.client != nil {
			return c.restartClient(ctx)
		}
		return nil
	})
}

func (c *controller) SetConfigurePreset(ctx context.Context, needsClean bool, apply func(*entity.ConfigurePreset) error) error {
	return c.queue.run(ctx, func() error {
		c.invalidateInputs()

		wasLive := c.client != nil
		if needsClean {
			c.shutdownClient(ctx)
			if err := c.removeArtifacts(); err != nil {
				return err
			}
		}

		c.mu.Lock()
		preset := entity.ConfigurePreset{}
		if c.cfgPreset != nil {
			preset = *c.cfgPreset
		}
		c.mu.Unlock()

		if err := apply(&preset); err != nil {
			return err
		}

		c.mu.Lock()
		c.cfgPreset = &preset
		c.mu.Unlock()

		if c.resolveGenerator() == "" {
			return errors.ErrNoGenerator
		}
		if wasLive {
			return c.restartClient(ctx)
		}
		return nil
	})
}

// SetBuildPreset runs the mutation callback. Build presets do not affect the
// server connection, so no restart is required.
func (c *controller) SetBuildPreset(apply func(*entity.BuildPreset) error) error {
	c.mu.Lock()
	preset := entity.BuildPreset{}
	if c.buildPreset != nil {
		preset = *c.buildPreset
	}
	c.mu.Unlock()

	if err := apply(&preset); err != nil {
		return err
	}

	c.mu.Lock()
	c.buildPreset = &preset
	c.mu.Unlock()
	return nil
}

// SetTestPreset runs the mutation callback. Test presets do not affect the
// server connection, so no restart is required.
func (c *controller) SetTestPreset(apply func(*entity.TestPreset) error) error {
	c.mu.Lock()
	preset := entity.TestPreset{}
	if c.testPreset != nil {
		preset = *c.testPreset
	}
	c.mu.Unlock()

	if err := apply(&preset); err != nil {
		return err
	}

	c.mu.Lock()
	c.testPreset = &preset
	c.mu.Unlock()
	return nil
}

func (c *controller) Stop(ctx context.Context) error {
	return c.queue.run(ctx, func() error {
		c.shutdownClient(ctx)
		c.setState(StateUninitialized)
		return nil
	})
}

// close fully tears the driver down. Used at service shutdown; the driver is
// not usable afterwards.
func (c *controller) close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.queue.close()
	return err
}

func (c *controller) CacheEntries() map[string]entity.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		return map[string]entity.CacheEntry{}
	}
	return c.cache.Entries()
}

func (c *controller) CMakeFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inputs == nil {
		return nil
	}
	return c.inputs.Paths()
}

func (c *controller) GeneratorName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generatorName
}

func (c *controller) State() State {
	return State(c.state.Load())
}

func (c *controller) OnMessage(fn func(string)) func() {
	return c.messages.Subscribe(fn)
}

func (c *controller) OnProgress(fn func(entity.Progress)) func() {
	return c.progress.Subscribe(fn)
}

func (c *controller) OnCodeModelChanged(fn func(*entity.CodeModel)) func() {
	return c.codeModelEvents.Subscribe(fn)
}

// acquireClient returns the live client, starting one if none is running.
// Must be called from a queue task.
func (c *controller) acquireClient(ctx context.Context) (cmakeserver.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	generator := c.resolveGenerator()
	if generator == "" {
		return nil, errors.ErrNoGenerator
	}

	if err := c.fs.MkdirAll(c.binaryDirectory()); err != nil {
		return nil, fmt.Errorf("creating binary directory: %w", err)
	}

	cl, err := c.servers.Start(ctx, cmakeserver.StartParams{
		WorkingDirectory: c.sourceDirectory(),
		SourceDirectory:  c.sourceDirectory(),
		BinaryDirectory:  c.binaryDirectory(),
		CMakePath:        c.cfg.CMakePath,
		Generator:        generator,
		Environment:      c.environment(),
	})
	if err != nil {
		return nil, err
	}

	c.client = cl
	c.clientCancels = []func(){
		cl.OnMessage(func(n model.MessageNotification) { c.messages.Publish(n.Message) }),
		cl.OnProgress(func(n model.ProgressNotification) {
			c.progress.Publish(entity.Progress{
				Message: n.ProgressMessage,
				Minimum: n.ProgressMinimum,
				Current: n.ProgressCurrent,
				Maximum: n.ProgressMaximum,
			})
		}),
		cl.OnSignal(func(n model.SignalNotification) {
			if n.Name == _signalDirty {
				c.configChanged.Store(true)
			}
		}),
	}
	return cl, nil
}

// restartClient replaces the live connection. The old client is fully shut
// down before the new one is considered live.
func (c *controller) restartClient(ctx context.Context) error {
	c.setState(StateRestarting)
	c.shutdownClient(ctx)

	if _, err := c.acquireClient(ctx); err != nil {
		c.setState(StateUninitialized)
		return err
	}

	c.setState(StateReady)
	c.stats.Counter("client_restarts").Inc(1)
	return nil
}

// shutdownClient stops the live client, if any. Must be called from a queue
// task.
func (c *controller) shutdownClient(ctx context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Shutdown(ctx); err != nil {
		c.logger.Warnw("shutting down cmake server", zap.Error(err))
	}
	c.dropClient()
}

func (c *controller) dropClient() {
	for _, cancel := range c.clientCancels {
		cancel()
	}
	c.clientCancels = nil
	c.client = nil
}

// removeArtifacts deletes the configuration outputs from the binary
// directory so the next configure starts from scratch.
func (c *controller) removeArtifacts() error {
	binaryDir := c.binaryDirectory()
	if err := c.fs.Remove(filepath.Join(binaryDir, _cacheFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", _cacheFileName, err)
	}
	if err := c.fs.RemoveAll(filepath.Join(binaryDir, _cacheDirName)); err != nil {
		return fmt.Errorf("removing %s: %w", _cacheDirName, err)
	}
	return nil
}

func (c *controller) invalidateInputs() {
	c.mu.Lock()
	c.inputs = nil
	c.mu.Unlock()
}

func (c *controller) onEnvironmentChanged() {
	c.configChanged.Store(true)
	c.requestRestart()
}

func (c *controller) onSourceDirectoryChanged() {
	c.configChanged.Store(true)
	c.invalidateInputs()
	c.requestRestart()
}

// requestRestart asks the queue to restart a live client. The request joins
// the queue like any other operation; if no client is running there is
// nothing to do.
func (c *controller) requestRestart() {
	go func() {
		err := c.queue.run(context.Background(), func() error {
			if c.client == nil {
				return errors.ErrClientNotRunning
			}
			return c.restartClient(context.Background())
		})
		if err != nil && !stderr.Is(err, errors.ErrDriverClosed) && !stderr.Is(err, errors.ErrClientNotRunning) {
			c.logger.Errorw("restarting cmake server after settings change", zap.Error(err))
		}
	}()
}

func (c *controller) setState(s State) {
	c.state.Store(int32(s))
}

// resolveGenerator picks the generator for new connections: the configure
// preset wins, then the kit's preference, then the configured default.
func (c *controller) resolveGenerator() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfgPreset != nil && c.cfgPreset.Generator != "" {
		return c.cfgPreset.Generator
	}
	if c.kit != nil && c.kit.PreferredGenerator != "" {
		return c.kit.PreferredGenerator
	}
	return c.cfg.Generator
}

func (c *controller) sourceDirectory() string {
	if dir := c.settings.SourceDirectory(); dir != "" {
		return dir
	}
	return c.cfg.SourceDirectory
}

func (c *controller) binaryDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfgPreset != nil && c.cfgPreset.BinaryDirectory != "" {
		return c.cfgPreset.BinaryDirectory
	}
	return c.cfg.BinaryDirectory
}

// configureArguments expands the caller's arguments with the cache arguments
// implied by the active kit and configure preset.
func (c *controller) configureArguments(args []string) []string {
	out := append([]string{}, args...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kit != nil {
		out = append(out, c.kit.CacheArguments...)
		if c.kit.ToolchainFile != "" {
			out = append(out, "-DCMAKE_TOOLCHAIN_FILE="+c.kit.ToolchainFile)
		}
		for _, lang := range sortedKeys(c.kit.Compilers) {
			out = append(out, fmt.Sprintf("-DCMAKE_%s_COMPILER=%s", lang, c.kit.Compilers[lang]))
		}
	}
	if c.cfgPreset != nil {
		for _, key := range sortedKeys(c.cfgPreset.CacheVariables) {
			out = append(out, fmt.Sprintf("-D%s=%s", key, c.cfgPreset.CacheVariables[key]))
		}
	}
	return out
}

// environment merges the process environment with the settings layers and
// the active kit's variables. Later layers win.
func (c *controller) environment() []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range c.settings.Environment() {
		merged[k] = v
	}
	for k, v := range c.settings.ConfigureEnvironment() {
		merged[k] = v
	}

	c.mu.Lock()
	if c.kit != nil {
		for k, v := range c.kit.Environment {
			merged[k] = v
		}
	}
	if c.cfgPreset != nil {
		for k, v := range c.cfgPreset.Environment {
			merged[k] = v
		}
	}
	c.mu.Unlock()

	out := make([]string, 0, len(merged))
	for _, k := range sortedKeys(merged) {
		out = append(out, k+"="+merged[k])
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
