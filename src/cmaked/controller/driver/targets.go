package driver

import (
	"github.com/uber/cmake-driver/src/cmaked/entity"
)

const (
	_targetAll     = "all"
	_targetInstall = "install"
)

// Targets flattens the current code model into the full target list, with
// the synthetic meta targets appended. The list is empty only when no code
// model has ever been computed.
func (c *controller) Targets() []entity.RichTarget {
	c.mu.Lock()
	codeModel := c.codeModel
	c.mu.Unlock()

	if codeModel == nil {
		return []entity.RichTarget{}
	}

	var out []entity.RichTarget
	for _, cfg := range codeModel.Configurations {
		for _, project := range cfg.Projects {
			for _, target := range project.Targets {
				out = append(out, entity.RichTarget{
					Name:       target.Name,
					FilePath:   targetFilePath(target),
					TargetType: target.Type,
				})
			}
		}
	}

	out = append(out, entity.RichTarget{Name: _targetAll, TargetType: entity.TargetTypeMeta})
	if codeModel.HasInstallRule() {
		out = append(out, entity.RichTarget{Name: _targetInstall, TargetType: entity.TargetTypeMeta})
	}
	return out
}

// ExecutableTargets filters Targets down to executables.
func (c *controller) ExecutableTargets() []entity.RichTarget {
	var out []entity.RichTarget
	for _, target := range c.Targets() {
		if target.TargetType == entity.TargetTypeExecutable {
			out = append(out, target)
		}
	}
	return out
}

// UniqueTargets deduplicates Targets by their (name, filepath, type) triple,
// keeping the first occurrence of each and preserving the original order
// otherwise.
func (c *controller) UniqueTargets() []entity.RichTarget {
	seen := make(map[entity.RichTarget]struct{})
	var out []entity.RichTarget
	for _, target := range c.Targets() {
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// targetFilePath picks the artifact path reported for a target, preferring
// the first artifact listed.
func targetFilePath(t entity.Target) string {
	if len(t.Artifacts) > 0 {
		return t.Artifacts[0]
	}
	return ""
}
