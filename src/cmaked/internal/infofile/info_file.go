// Package infofile maintains the driver info file, a small JSON document
// that tells IDEs and build tooling where the running daemon can be reached.
package infofile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "driverInfoFilePath"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// InfoFile manages the contents of the driver info file. Fields are written
// at service launch and the file is removed on shutdown, so a present file
// always describes a live daemon.
type InfoFile interface {
	UpdateField(key string, value string) error
}

type module struct {
	path     string
	logger   *zap.SugaredLogger
	contents map[string]string
	mu       sync.Mutex
}

// Params define values to be used by InfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates an InfoFile backed by the configured path.
func New(p Params) (InfoFile, error) {
	m := module{
		logger:   p.Logger,
		contents: make(map[string]string),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})

	return &m, nil
}

func (m *module) OnStop(ctx context.Context) error {
	if m.path != "" {
		if err := os.Remove(m.path); err != nil {
			return err
		}
	}

	return nil
}

func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contents[key] = value
	out, err := json.Marshal(m.contents)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := os.WriteFile(m.path, out, 0644); err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}
	m.logger.Infow("driver info saved", zap.String("file", m.path), zap.String(key, value))
	return nil
}

func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyInfoFile)
	if err := val.Populate(&m.path); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.path == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}

	return nil
}
