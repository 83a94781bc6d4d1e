// pkg/tenantctx/defaults.go
package tenantctx

// EffectiveDefaults merges the realm, tenant and org defaults maps,
// later levels overriding earlier ones at the leaf: nested maps merge
// recursively, scalars and arrays overwrite wholesale. Inputs are
// never mutated.
func EffectiveDefaults(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, layer := range layers {
		out = deepMerge(out, layer)
	}
	return out
}

func deepMerge(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(copyMap(dm), sm)
				continue
			}
			dst[k] = copyMap(sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if mv, ok := v.(map[string]any); ok {
			out[k] = copyMap(mv)
			continue
		}
		out[k] = v
	}
	return out
}
