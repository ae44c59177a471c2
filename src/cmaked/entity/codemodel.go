package entity

// Target types reported in the code model, plus the synthetic meta type used
// for the "all" and "install" pseudo targets.
const (
	TargetTypeExecutable = "EXECUTABLE"
	TargetTypeMeta       = "META"
)

// FileGroup is a set of sources within a target that share compile settings.
type FileGroup struct {
	Sources                 []string
	Language                string
	IncludePaths            []string
	Defines                 []string
	IsGenerated             bool
	CompileCommandFragments []string
}

// Target is one build target of the code model.
type Target struct {
	Name            string
	Type            string
	FullName        string
	SourceDirectory string
	Artifacts       []string
	FileGroups      []FileGroup
}

// Project groups targets under one project declaration.
type Project struct {
	Name            string
	SourceDirectory string
	HasInstallRule  bool
	Targets         []Target
}

// Configuration is one build configuration of the code model.
type Configuration struct {
	Name     string
	Projects []Project
}

// CodeModel is the normalized description of configurations, projects,
// targets, and file groups produced by a successful configure. A nil
// *CodeModel means the driver has never completed a configure; a non-nil
// model with zero targets is a valid configured state.
type CodeModel struct {
	Configurations []Configuration
}

// HasInstallRule reports whether any project in any configuration declares an
// install rule.
func (m *CodeModel) HasInstallRule() bool {
	for _, cfg := range m.Configurations {
		for _, p := range cfg.Projects {
			if p.HasInstallRule {
				return true
			}
		}
	}
	return false
}

// RichTarget is the deduplicated presentation view of a target. Meta targets
// carry an empty FilePath.
type RichTarget struct {
	Name       string `json:"name"`
	FilePath   string `json:"filepath"`
	TargetType string `json:"targetType"`
}

// Progress describes one progress update from the cmake server.
type Progress struct {
	Message string
	Minimum int
	Current int
	Maximum int
}
