package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-driver/src/cmaked/model"
)

func sampleReply() *model.CodeModelReply {
	return &model.CodeModelReply{Configurations: []model.ServerConfiguration{{
		Name: "Debug",
		Projects: []model.ServerProject{{
			Name:            "demo",
			SourceDirectory: "/src/demo",
			HasInstallRule:  true,
			Targets: []model.ServerTarget{{
				Name:            "app",
				Type:            "EXECUTABLE",
				FullName:        "app",
				SourceDirectory: "/src/demo",
				Artifacts:       []string{"/build/app"},
				FileGroups: []model.ServerFileGroup{{
					Language:     "CXX",
					CompileFlags: "-O2 -Wall",
					IncludePaths: []model.IncludePath{{Path: "/src/demo/include"}},
					Defines:      []string{"NDEBUG"},
					Sources:      []string{"main.cc"},
				}},
			}},
		}},
	}}}
}

func TestCodeModelFromServerNil(t *testing.T) {
	assert.Nil(t, CodeModelFromServer(nil))
}

func TestCodeModelFromServerStructuralCopy(t *testing.T) {
	cm := CodeModelFromServer(sampleReply())
	require.NotNil(t, cm)
	require.Len(t, cm.Configurations, 1)

	cfg := cm.Configurations[0]
	assert.Equal(t, "Debug", cfg.Name)
	require.Len(t, cfg.Projects, 1)

	p := cfg.Projects[0]
	assert.Equal(t, "demo", p.Name)
	assert.True(t, p.HasInstallRule)
	require.Len(t, p.Targets, 1)

	target := p.Targets[0]
	assert.Equal(t, "app", target.Name)
	assert.Equal(t, "EXECUTABLE", target.Type)
	assert.Equal(t, []string{"/build/app"}, target.Artifacts)
	require.Len(t, target.FileGroups, 1)

	g := target.FileGroups[0]
	assert.Equal(t, "CXX", g.Language)
	assert.Equal(t, []string{"/src/demo/include"}, g.IncludePaths)
	assert.Equal(t, []string{"NDEBUG"}, g.Defines)
	assert.Equal(t, []string{"main.cc"}, g.Sources)
}

func TestCodeModelFromServerIsDeterministic(t *testing.T) {
	first := CodeModelFromServer(sampleReply())
	second := CodeModelFromServer(sampleReply())
	assert.Equal(t, first, second)
}

func TestCompileFragmentFallback(t *testing.T) {
	target := func(groupFlags, linkFlags string) model.ServerTarget {
		return model.ServerTarget{
			Name:              "t",
			LinkLanguageFlags: linkFlags,
			FileGroups:        []model.ServerFileGroup{{CompileFlags: groupFlags, Sources: []string{"a.cc"}}},
		}
	}
	reply := func(tgt model.ServerTarget) *model.CodeModelReply {
		return &model.CodeModelReply{Configurations: []model.ServerConfiguration{{
			Projects: []model.ServerProject{{Targets: []model.ServerTarget{tgt}}},
		}}}
	}
	group := func(tgt model.ServerTarget) []string {
		cm := CodeModelFromServer(reply(tgt))
		return cm.Configurations[0].Projects[0].Targets[0].FileGroups[0].CompileCommandFragments
	}

	// Per-group flags win when both are present.
	assert.Equal(t, []string{"-O2"}, group(target("-O2", "-fuse-ld=lld")))
	// A group without its own flags inherits the target's link-language flags.
	assert.Equal(t, []string{"-fuse-ld=lld"}, group(target("", "-fuse-ld=lld")))
	// Neither yields an empty, non-nil fragment list.
	assert.Equal(t, []string{}, group(target("", "")))
}
