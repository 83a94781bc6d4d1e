package tenantctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveDefaultsLeafMerge(t *testing.T) {
	got := EffectiveDefaults(
		map[string]any{"a": 1, "b": map[string]any{"x": 1}},
		map[string]any{"b": map[string]any{"y": 2}},
		map[string]any{"b": map[string]any{"x": 3}},
	)
	assert.Equal(t, map[string]any{"a": 1, "b": map[string]any{"x": 3, "y": 2}}, got)
}

func TestEffectiveDefaultsArraysOverwriteWholesale(t *testing.T) {
	got := EffectiveDefaults(
		map[string]any{"tags": []any{"a", "b"}, "n": 1},
		map[string]any{"tags": []any{"c"}},
	)
	assert.Equal(t, map[string]any{"tags": []any{"c"}, "n": 1}, got)
}

func TestEffectiveDefaultsScalarReplacesMap(t *testing.T) {
	got := EffectiveDefaults(
		map[string]any{"b": map[string]any{"x": 1}},
		map[string]any{"b": "flat"},
	)
	assert.Equal(t, map[string]any{"b": "flat"}, got)
}

func TestEffectiveDefaultsDoesNotMutateInputs(t *testing.T) {
	realm := map[string]any{"b": map[string]any{"x": 1}}
	tenant := map[string]any{"b": map[string]any{"y": 2}}
	_ = EffectiveDefaults(realm, tenant)
	assert.Equal(t, map[string]any{"b": map[string]any{"x": 1}}, realm)
	assert.Equal(t, map[string]any{"b": map[string]any{"y": 2}}, tenant)
}

func TestEffectiveDefaultsEmptyLayers(t *testing.T) {
	got := EffectiveDefaults(nil, map[string]any{"a": 1}, nil)
	assert.Equal(t, map[string]any{"a": 1}, got)
}
