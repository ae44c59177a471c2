package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"go.lsp.dev/jsonrpc2"
)

func wrapErrParse(err error) error {
	return fmt.Errorf("%w: %s", jsonrpc2.ErrParse, err)
}

func unmarshalRequest(req jsonrpc2.Request, out interface{}) error {
	if len(req.Params()) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params(), out); err != nil {
		return wrapErrParse(err)
	}
	return nil
}

// RequestToConfigureParams maps the parameters from a jsonrpc2.Request into
// model.DriverConfigureParams.
func RequestToConfigureParams(req jsonrpc2.Request) (*model.DriverConfigureParams, error) {
	params := model.DriverConfigureParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// RequestToTargetsParams maps the parameters from a jsonrpc2.Request into
// model.DriverTargetsParams.
func RequestToTargetsParams(req jsonrpc2.Request) (*model.DriverTargetsParams, error) {
	params := model.DriverTargetsParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// RequestToKit maps the parameters from a jsonrpc2.Request into a Kit entity.
func RequestToKit(req jsonrpc2.Request) (*entity.Kit, error) {
	params := model.KitParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, err
	}
	return &entity.Kit{
		Name:               params.Name,
		Compilers:          params.Compilers,
		ToolchainFile:      params.ToolchainFile,
		PreferredGenerator: params.PreferredGenerator,
		Environment:        params.Environment,
		CacheArguments:     params.CacheArguments,
	}, nil
}

// RequestToConfigurePreset maps the parameters from a jsonrpc2.Request into a
// ConfigurePreset entity and its needsClean flag.
func RequestToConfigurePreset(req jsonrpc2.Request) (*entity.ConfigurePreset, bool, error) {
	params := model.ConfigurePresetParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, false, err
	}
	return &entity.ConfigurePreset{
		Name:            params.Name,
		Generator:       params.Generator,
		BinaryDirectory: params.BinaryDirectory,
		CacheVariables:  params.CacheVariables,
		Environment:     params.Environment,
	}, params.NeedsClean, nil
}

// RequestToBuildPreset maps the parameters from a jsonrpc2.Request into a
// BuildPreset entity.
func RequestToBuildPreset(req jsonrpc2.Request) (*entity.BuildPreset, error) {
	params := model.BuildPresetParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, err
	}
	return &entity.BuildPreset{
		Name:       params.Name,
		Targets:    params.Targets,
		Jobs:       params.Jobs,
		CleanFirst: params.CleanFirst,
	}, nil
}

// RequestToTestPreset maps the parameters from a jsonrpc2.Request into a
// TestPreset entity.
func RequestToTestPreset(req jsonrpc2.Request) (*entity.TestPreset, error) {
	params := model.TestPresetParams{}
	if err := unmarshalRequest(req, &params); err != nil {
		return nil, err
	}
	return &entity.TestPreset{
		Name:          params.Name,
		Configuration: params.Configuration,
	}, nil
}

// CacheEntriesToWire maps cache entries to their wire form, with type tags
// rendered as strings.
func CacheEntriesToWire(entries map[string]entity.CacheEntry) map[string]model.DriverCacheEntry {
	out := make(map[string]model.DriverCacheEntry, len(entries))
	for key, e := range entries {
		out[key] = model.DriverCacheEntry{
			Value:      e.Value,
			Type:       e.Type.String(),
			HelpString: e.HelpString,
			Advanced:   e.Advanced,
		}
	}
	return out
}

// ProgressToEvent maps a Progress entity to its wire event.
func ProgressToEvent(p entity.Progress) *model.DriverProgressEvent {
	return &model.DriverProgressEvent{
		Message: p.Message,
		Minimum: p.Minimum,
		Current: p.Current,
		Maximum: p.Maximum,
	}
}
