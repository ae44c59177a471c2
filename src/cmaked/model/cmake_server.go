// Package model holds the wire-level shapes exchanged with the cmake
// configuration server. Fields mirror the server's loosely-typed JSON; the
// mapper package converts them into entities.
package model

// ProtocolVersion identifies a protocol revision offered by the server.
type ProtocolVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// HelloParams is sent as the handshake request when a connection is opened.
type HelloParams struct {
	ProtocolVersion ProtocolVersion `json:"protocolVersion"`
	SourceDirectory string          `json:"sourceDirectory"`
	BuildDirectory  string          `json:"buildDirectory"`
	Generator       string          `json:"generator"`
}

// HelloReply lists the protocol versions the server supports.
type HelloReply struct {
	SupportedProtocolVersions []ProtocolVersion `json:"supportedProtocolVersions"`
}

// ConfigureParams carries the cache arguments for a configure request.
type ConfigureParams struct {
	CacheArguments []string `json:"cacheArguments"`
}

// CacheEntryProperties are the auxiliary attributes the server attaches to a
// cache entry.
type CacheEntryProperties struct {
	HelpString string `json:"HELPSTRING"`
	Advanced   string `json:"ADVANCED"`
}

// ServerCacheEntry is one raw key/value/type triple from the server's cache
// reply. Type is an open string tag; unknown tags are rejected by the mapper.
type ServerCacheEntry struct {
	Key        string               `json:"key"`
	Value      string               `json:"value"`
	Type       string               `json:"type"`
	Properties CacheEntryProperties `json:"properties"`
}

// CacheReply is the server's response to a cache request.
type CacheReply struct {
	Cache []ServerCacheEntry `json:"cache"`
}

// BuildFileGroup is one group of build-definition files from a cmakeInputs
// reply.
type BuildFileGroup struct {
	IsCMake     bool     `json:"isCMake"`
	IsTemporary bool     `json:"isTemporary"`
	Sources     []string `json:"sources"`
}

// CMakeInputsReply lists the files that were read to produce the current
// configuration.
type CMakeInputsReply struct {
	BuildFiles         []BuildFileGroup `json:"buildFiles"`
	CMakeRootDirectory string           `json:"cmakeRootDirectory"`
	SourceDirectory    string           `json:"sourceDirectory"`
}

// GlobalSettingsReply reports the server's effective global settings.
type GlobalSettingsReply struct {
	Generator       string `json:"generator"`
	ExtraGenerator  string `json:"extraGenerator"`
	SourceDirectory string `json:"sourceDirectory"`
	BuildDirectory  string `json:"buildDirectory"`
}

// IncludePath is one include directory of a file group.
type IncludePath struct {
	Path     string `json:"path"`
	IsSystem bool   `json:"isSystem"`
}

// ServerFileGroup is a group of sources within a target that share compile
// settings. CompileFlags may be empty; some server versions only report flags
// at target granularity.
type ServerFileGroup struct {
	Language     string        `json:"language"`
	CompileFlags string        `json:"compileFlags"`
	IncludePaths []IncludePath `json:"includePath"`
	Defines      []string      `json:"defines"`
	IsGenerated  bool          `json:"isGenerated"`
	Sources      []string      `json:"sources"`
}

// ServerTarget is one build target within a project.
type ServerTarget struct {
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	FullName          string            `json:"fullName"`
	SourceDirectory   string            `json:"sourceDirectory"`
	Artifacts         []string          `json:"artifacts"`
	LinkLanguageFlags string            `json:"linkLanguageFlags"`
	FileGroups        []ServerFileGroup `json:"fileGroups"`
}

// ServerProject is one project within a configuration.
type ServerProject struct {
	Name            string         `json:"name"`
	SourceDirectory string         `json:"sourceDirectory"`
	HasInstallRule  bool           `json:"hasInstallRule"`
	Targets         []ServerTarget `json:"targets"`
}

// ServerConfiguration is one build configuration (for example Debug).
type ServerConfiguration struct {
	Name     string          `json:"name"`
	Projects []ServerProject `json:"projects"`
}

// CodeModelReply is the server's response to a codemodel request.
type CodeModelReply struct {
	Configurations []ServerConfiguration `json:"configurations"`
}

// MessageNotification is a free-form diagnostic message from the server.
type MessageNotification struct {
	Message string `json:"message"`
	Title   string `json:"title"`
}

// ProgressNotification reports progress of a long-running server operation.
type ProgressNotification struct {
	ProgressMessage string `json:"progressMessage"`
	ProgressMinimum int    `json:"progressMinimum"`
	ProgressCurrent int    `json:"progressCurrent"`
	ProgressMaximum int    `json:"progressMaximum"`
}

// SignalNotification is an out-of-band signal such as "dirty" or
// "fileChange".
type SignalNotification struct {
	Name string `json:"name"`
}
