package mapper

import (
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/model"
)

// CodeModelFromServer converts the server's nested code model into the
// normalized entity form. A nil reply (no model yet) maps to nil. The copy is
// structural and order-preserving; the same input always yields structurally
// identical output.
func CodeModelFromServer(reply *model.CodeModelReply) *entity.CodeModel {
	if reply == nil {
		return nil
	}

	out := &entity.CodeModel{
		Configurations: make([]entity.Configuration, 0, len(reply.Configurations)),
	}
	for _, cfg := range reply.Configurations {
		out.Configurations = append(out.Configurations, configurationFromServer(cfg))
	}
	return out
}

func configurationFromServer(cfg model.ServerConfiguration) entity.Configuration {
	projects := make([]entity.Project, 0, len(cfg.Projects))
	for _, p := range cfg.Projects {
		projects = append(projects, projectFromServer(p))
	}
	return entity.Configuration{Name: cfg.Name, Projects: projects}
}

func projectFromServer(p model.ServerProject) entity.Project {
	targets := make([]entity.Target, 0, len(p.Targets))
	for _, t := range p.Targets {
		targets = append(targets, targetFromServer(t))
	}
	return entity.Project{
		Name:            p.Name,
		SourceDirectory: p.SourceDirectory,
		HasInstallRule:  p.HasInstallRule,
		Targets:         targets,
	}
}

func targetFromServer(t model.ServerTarget) entity.Target {
	groups := make([]entity.FileGroup, 0, len(t.FileGroups))
	for _, g := range t.FileGroups {
		groups = append(groups, fileGroupFromServer(g, t.LinkLanguageFlags))
	}
	return entity.Target{
		Name:            t.Name,
		Type:            t.Type,
		FullName:        t.FullName,
		SourceDirectory: t.SourceDirectory,
		Artifacts:       append([]string(nil), t.Artifacts...),
		FileGroups:      groups,
	}
}

func fileGroupFromServer(g model.ServerFileGroup, linkLanguageFlags string) entity.FileGroup {
	includes := make([]string, 0, len(g.IncludePaths))
	for _, ip := range g.IncludePaths {
		includes = append(includes, ip.Path)
	}

	// Some server versions only report flags at target granularity for
	// pure-link targets, so fall back to the target's link-language flags
	// when the group has none of its own.
	var fragments []string
	switch {
	case g.CompileFlags != "":
		fragments = []string{g.CompileFlags}
	case linkLanguageFlags != "":
		fragments = []string{linkLanguageFlags}
	default:
		fragments = []string{}
	}

	return entity.FileGroup{
		Sources:                 append([]string(nil), g.Sources...),
		Language:                g.Language,
		IncludePaths:            includes,
		Defines:                 append([]string(nil), g.Defines...),
		IsGenerated:             g.IsGenerated,
		CompileCommandFragments: fragments,
	}
}
