package entity

// Kit is a named toolchain profile selected by the user: compiler paths, an
// optional toolchain file, and extra environment variables.
type Kit struct {
	Name               string
	Compilers          map[string]string
	ToolchainFile      string
	PreferredGenerator string
	Environment        map[string]string
	CacheArguments     []string
}

// ConfigurePreset is a file-defined bundle of configure parameters,
// alternative to ad-hoc kit selection.
type ConfigurePreset struct {
	Name            string
	Generator       string
	BinaryDirectory string
	CacheVariables  map[string]string
	Environment     map[string]string
}

// BuildPreset is a file-defined bundle of build parameters.
type BuildPreset struct {
	Name       string
	Targets    []string
	Jobs       int
	CleanFirst bool
}

// TestPreset is a file-defined bundle of test parameters.
type TestPreset struct {
	Name          string
	Configuration string
}
