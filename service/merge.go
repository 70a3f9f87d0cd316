package service

// MergeConfig overlays override onto base, recursing into nested maps.
// A scalar or slice in override replaces the base value wholesale; maps
// merge key by key. Neither input is mutated.
func MergeConfig(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		baseMap, baseIsMap := out[k].(map[string]any)
		overrideMap, overrideIsMap := v.(map[string]any)
		if baseIsMap && overrideIsMap {
			out[k] = MergeConfig(baseMap, overrideMap)
			continue
		}
		out[k] = v
	}
	return out
}
