package driverdaemon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/cmake-driver/src/cmaked/entity"
	"github.com/uber/cmake-driver/src/cmaked/factory"
	"github.com/uber/cmake-driver/src/cmaked/model"
	"go.lsp.dev/jsonrpc2"
)

func newRouter(t *testing.T, f *fixture) *jsonRPCRouter {
	t.Helper()
	router, err := f.rpc.mgr.NewConnection(context.Background(), nil)
	require.NoError(t, err)
	return router.(*jsonRPCRouter)
}

type capturedReply struct {
	result interface{}
	err    error
}

func capture(out *capturedReply) jsonrpc2.Replier {
	return func(ctx context.Context, result interface{}, err error) error {
		out.result = result
		out.err = err
		return nil
	}
}

func TestConfigureMethod(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	req := factory.JSONRPCRequest(MethodConfigure, &model.DriverConfigureParams{Args: []string{"-DFOO=1"}})
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))

	require.NoError(t, reply.err)
	result, ok := reply.result.(*model.DriverConfigureResult)
	require.True(t, ok)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, [][]string{{"-DFOO=1"}}, f.driver.configureArgs)
}

func TestConfigureMethodError(t *testing.T) {
	f := newFixture(t)
	f.driver.configureErr = errors.New("spawn failed")
	r := newRouter(t, f)

	var reply capturedReply
	req := factory.JSONRPCRequest(MethodConfigure, nil)
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))
	assert.Error(t, reply.err)
}

func TestNeedsReconfigureMethod(t *testing.T) {
	f := newFixture(t)
	f.driver.needsReconfig = true
	r := newRouter(t, f)

	var reply capturedReply
	req := factory.JSONRPCRequest(MethodNeedsReconfigure, nil)
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))

	result, ok := reply.result.(*model.DriverNeedsReconfigureResult)
	require.True(t, ok)
	assert.True(t, result.NeedsReconfigure)
}

func TestTargetsMethodKinds(t *testing.T) {
	f := newFixture(t)
	f.driver.targets = []entity.RichTarget{
		{Name: "app", TargetType: entity.TargetTypeExecutable},
		{Name: "all", TargetType: entity.TargetTypeMeta},
	}
	r := newRouter(t, f)

	tests := []struct {
		kind string
		want int
	}{
		{kind: "", want: 2},
		{kind: "executable", want: 1},
		{kind: "unique", want: 2},
	}

	for _, tt := range tests {
		t.Run("kind="+tt.kind, func(t *testing.T) {
			var reply capturedReply
			req := factory.JSONRPCRequest(MethodTargets, &model.DriverTargetsParams{Kind: tt.kind})
			require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))

			targets, ok := reply.result.([]entity.RichTarget)
			require.True(t, ok)
			assert.Len(t, targets, tt.want)
		})
	}
}

func TestCacheMethod(t *testing.T) {
	f := newFixture(t)
	f.driver.cache = map[string]entity.CacheEntry{
		"FOO": {Key: "FOO", Value: "1", Type: entity.CacheString},
	}
	r := newRouter(t, f)

	var reply capturedReply
	req := factory.JSONRPCRequest(MethodCache, nil)
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))

	entries, ok := reply.result.(map[string]model.DriverCacheEntry)
	require.True(t, ok)
	assert.Equal(t, model.DriverCacheEntry{Value: "1", Type: "STRING"}, entries["FOO"])
}

func TestGeneratorAndStateMethods(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), factory.JSONRPCRequest(MethodGenerator, nil)))
	gen, ok := reply.result.(*model.DriverGeneratorResult)
	require.True(t, ok)
	assert.Equal(t, "Ninja", gen.Generator)

	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), factory.JSONRPCRequest(MethodState, nil)))
	state, ok := reply.result.(*model.DriverStateResult)
	require.True(t, ok)
	assert.Equal(t, "uninitialized", state.State)
}

func TestSetKitMethod(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	req := factory.JSONRPCRequest(MethodSetKit, &model.KitParams{
		Name:               "clang",
		PreferredGenerator: "Ninja",
	})
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), req))
	require.NoError(t, reply.err)

	f.driver.mu.Lock()
	defer f.driver.mu.Unlock()
	require.NotNil(t, f.driver.kit)
	assert.Equal(t, "clang", f.driver.kit.Name)
	assert.Equal(t, "Ninja", f.driver.kit.PreferredGenerator)
}

func TestSetPresetMethods(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply),
		factory.JSONRPCRequest(MethodSetConfigurePreset, &model.ConfigurePresetParams{Name: "debug", Generator: "Ninja"})))
	require.NoError(t, reply.err)

	require.NoError(t, r.HandleReq(context.Background(), capture(&reply),
		factory.JSONRPCRequest(MethodSetBuildPreset, &model.BuildPresetParams{Name: "fast", Jobs: 8})))
	require.NoError(t, reply.err)

	require.NoError(t, r.HandleReq(context.Background(), capture(&reply),
		factory.JSONRPCRequest(MethodSetTestPreset, &model.TestPresetParams{Name: "unit"})))
	require.NoError(t, reply.err)

	f.driver.mu.Lock()
	defer f.driver.mu.Unlock()
	assert.Equal(t, "debug", f.driver.cfgPreset.Name)
	assert.Equal(t, 8, f.driver.buildPreset.Jobs)
	assert.Equal(t, "unit", f.driver.testPreset.Name)
}

func TestStopMethod(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), factory.JSONRPCRequest(MethodStop, nil)))
	require.NoError(t, reply.err)
	assert.Equal(t, 1, f.driver.stopped)
}

func TestSubscribeMethod(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), factory.JSONRPCRequest(MethodSubscribe, nil)))
	require.NoError(t, reply.err)

	s, err := f.sessions.Get(context.Background(), r.UUID())
	require.NoError(t, err)
	assert.True(t, s.Subscribed)
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t)
	r := newRouter(t, f)

	var reply capturedReply
	require.NoError(t, r.HandleReq(context.Background(), capture(&reply), factory.JSONRPCRequest("driver/bogus", nil)))
	assert.ErrorIs(t, reply.err, jsonrpc2.ErrMethodNotFound)
}
