package config

// MergeMaps merges override onto base and returns the result. Maps merge
// recursively key-wise; scalars and lists in override replace base values
// wholesale. Neither input is modified.
func MergeMaps(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for key, value := range base {
		out[key] = value
	}

	for key, value := range override {
		overrideMap, overrideIsMap := value.(map[string]interface{})
		baseMap, baseIsMap := out[key].(map[string]interface{})
		if overrideIsMap && baseIsMap {
			out[key] = MergeMaps(baseMap, overrideMap)
			continue
		}
		out[key] = value
	}
	return out
}

// SetPath sets a value at a dotted path inside tree, creating intermediate
// maps as needed. An existing non-map value on the path is replaced by a
// map. Returns false when the path is empty.
func SetPath(tree map[string]interface{}, path []string, value interface{}) bool {
	if len(path) == 0 {
		return false
	}

	node := tree
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
	return true
}

// GetPath returns the value at a dotted path inside tree.
func GetPath(tree map[string]interface{}, path []string) (interface{}, bool) {
	var current interface{} = tree
	for _, key := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
