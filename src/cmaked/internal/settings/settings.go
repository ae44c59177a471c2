// Package settings exposes the user-editable driver settings file as a typed,
// observable store. The driver subscribes to change notifications to decide
// when its cmake server client must be restarted or marked dirty.
package settings

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

const _configKeySettingsPath = "settings.path"

// Setting names that can be observed via OnChange.
const (
	KeyEnvironment          = "environment"
	KeyConfigureEnvironment = "configureEnvironment"
	KeyBuildEnvironment     = "buildEnvironment"
	KeySourceDirectory      = "sourceDirectory"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Store is a read-only view over the settings file plus a subscription
// mechanism for change notifications.
type Store interface {
	// Environment returns the base environment variables.
	Environment() map[string]string
	// ConfigureEnvironment returns variables applied only during configure.
	ConfigureEnvironment() map[string]string
	// BuildEnvironment returns variables applied only during build.
	BuildEnvironment() map[string]string
	// SourceDirectory returns the configured source directory override, or "".
	SourceDirectory() string
	// OnChange registers fn to run whenever the named setting's value
	// changes. The returned cancel removes the subscription.
	OnChange(name string, fn func()) (cancel func())
}

type fileContents struct {
	Environment          map[string]string `yaml:"environment"`
	ConfigureEnvironment map[string]string `yaml:"configureEnvironment"`
	BuildEnvironment     map[string]string `yaml:"buildEnvironment"`
	SourceDirectory      string            `yaml:"sourceDirectory"`
}

type store struct {
	path   string
	logger *zap.SugaredLogger

	mu       sync.Mutex
	contents fileContents
	nextID   int
	subs     map[string]map[int]func()

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Params define values to be used by the settings Store.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates a Store over the settings file named in the service config and
// begins watching it for changes on service start.
func New(p Params) (Store, error) {
	s := &store{
		logger: p.Logger,
		subs:   make(map[string]map[int]func()),
		done:   make(chan struct{}),
	}

	if err := p.Config.Get(_configKeySettingsPath).Populate(&s.path); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeySettingsPath, err)
	}
	if s.path == "" {
		return nil, fmt.Errorf("missing field %q in config", _configKeySettingsPath)
	}

	s.reload()

	p.Lifecycle.Append(fx.Hook{
		OnStart: s.OnStart,
		OnStop:  s.OnStop,
	})

	return s, nil
}

// OnStart begins watching the settings file's directory. Watching the
// directory rather than the file keeps notifications working across editors
// that replace the file on save.
func (s *store) OnStart(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go s.watch()
	return nil
}

// OnStop stops the watcher and releases its resources.
func (s *store) OnStop(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *store) Environment() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.contents.Environment)
}

func (s *store) ConfigureEnvironment() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.contents.ConfigureEnvironment)
}

func (s *store) BuildEnvironment() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.contents.BuildEnvironment)
}

func (s *store) SourceDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contents.SourceDirectory
}

func (s *store) OnChange(name string, fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[name] == nil {
		s.subs[name] = make(map[int]func())
	}
	id := s.nextID
	s.nextID++
	s.subs[name][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[name], id)
	}
}

func (s *store) watch() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) {
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warnw("settings watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the settings file and fires callbacks for every setting
// whose value changed. A missing file yields empty settings.
func (s *store) reload() {
	var next fileContents
	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		// empty contents
	case err != nil:
		s.logger.Warnw("reading settings file", zap.String("path", s.path), zap.Error(err))
		return
	default:
		if err := yaml.Unmarshal(data, &next); err != nil {
			s.logger.Warnw("parsing settings file", zap.String("path", s.path), zap.Error(err))
			return
		}
	}

	s.mu.Lock()
	prev := s.contents
	s.contents = next

	var fns []func()
	for _, c := range []struct {
		name    string
		changed bool
	}{
		{KeyEnvironment, !maps.Equal(prev.Environment, next.Environment)},
		{KeyConfigureEnvironment, !maps.Equal(prev.ConfigureEnvironment, next.ConfigureEnvironment)},
		{KeyBuildEnvironment, !maps.Equal(prev.BuildEnvironment, next.BuildEnvironment)},
		{KeySourceDirectory, prev.SourceDirectory != next.SourceDirectory},
	} {
		if !c.changed {
			continue
		}
		for _, fn := range s.subs[c.name] {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
