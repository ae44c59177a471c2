package model

// Request and reply shapes of the daemon's inbound JSON-RPC API.

// DriverConfigureParams carries the extra cache arguments for a configure
// request from a connected tool.
type DriverConfigureParams struct {
	Args []string `json:"args"`
}

// DriverConfigureResult reports the outcome of a configure run.
type DriverConfigureResult struct {
	ExitCode int `json:"exitCode"`
}

// DriverTargetsParams selects which target view to return.
type DriverTargetsParams struct {
	Kind string `json:"kind"`
}

// DriverStateResult reports the driver's current lifecycle state.
type DriverStateResult struct {
	State string `json:"state"`
}

// DriverGeneratorResult reports the generator in use.
type DriverGeneratorResult struct {
	Generator string `json:"generator"`
}

// DriverNeedsReconfigureResult reports configuration staleness.
type DriverNeedsReconfigureResult struct {
	NeedsReconfigure bool `json:"needsReconfigure"`
}

// KitParams is the wire form of a kit selection.
type KitParams struct {
	Name               string            `json:"name"`
	Compilers          map[string]string `json:"compilers,omitempty"`
	ToolchainFile      string            `json:"toolchainFile,omitempty"`
	PreferredGenerator string            `json:"preferredGenerator,omitempty"`
	Environment        map[string]string `json:"environment,omitempty"`
	CacheArguments     []string          `json:"cacheArguments,omitempty"`
}

// ConfigurePresetParams is the wire form of a configure preset selection.
type ConfigurePresetParams struct {
	Name            string            `json:"name"`
	Generator       string            `json:"generator,omitempty"`
	BinaryDirectory string            `json:"binaryDirectory,omitempty"`
	CacheVariables  map[string]string `json:"cacheVariables,omitempty"`
	Environment     map[string]string `json:"environment,omitempty"`
	NeedsClean      bool              `json:"needsClean,omitempty"`
}

// BuildPresetParams is the wire form of a build preset selection.
type BuildPresetParams struct {
	Name       string   `json:"name"`
	Targets    []string `json:"targets,omitempty"`
	Jobs       int      `json:"jobs,omitempty"`
	CleanFirst bool     `json:"cleanFirst,omitempty"`
}

// TestPresetParams is the wire form of a test preset selection.
type TestPresetParams struct {
	Name          string `json:"name"`
	Configuration string `json:"configuration,omitempty"`
}

// DriverCacheEntry is the wire form of one cache entry.
type DriverCacheEntry struct {
	Value      string `json:"value"`
	Type       string `json:"type"`
	HelpString string `json:"helpString,omitempty"`
	Advanced   bool   `json:"advanced,omitempty"`
}

// DriverMessageEvent is pushed to subscribed sessions for each message the
// cmake server emits.
type DriverMessageEvent struct {
	Message string `json:"message"`
}

// DriverProgressEvent is pushed to subscribed sessions for each progress
// update during configure.
type DriverProgressEvent struct {
	Message string `json:"message"`
	Minimum int    `json:"minimum"`
	Current int    `json:"current"`
	Maximum int    `json:"maximum"`
}
