package configstore

import (
	"sort"
	"strings"
)

// EnvLayer is one precedence layer of KEY=VALUE specifications. Specs maps
// each key to its full specification; Order records the declaration order.
type EnvLayer struct {
	Specs map[string]string
	Order []string
}

// NewEnvLayer builds a layer from KEY=VALUE (or bare KEY) entries. Repeated
// keys within one layer keep the last value and the first position.
func NewEnvLayer(specs []string) EnvLayer {
	layer := EnvLayer{Specs: make(map[string]string, len(specs))}
	for _, spec := range specs {
		key := EnvKey(spec)
		if key == "" {
			continue
		}
		if _, seen := layer.Specs[key]; !seen {
			layer.Order = append(layer.Order, key)
		}
		layer.Specs[key] = strings.TrimSpace(spec)
	}
	return layer
}

// EnvKey returns the variable name of a KEY=VALUE specification.
func EnvKey(spec string) string {
	key, _, _ := strings.Cut(spec, "=")
	return strings.TrimSpace(key)
}

func (l EnvLayer) keys() []string {
	if len(l.Specs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(l.Specs))
	seen := make(map[string]bool, len(l.Specs))
	for _, key := range l.Order {
		key = strings.TrimSpace(key)
		if _, ok := l.Specs[key]; !ok || key == "" || seen[key] {
			continue
		}
		keys = append(keys, key)
		seen[key] = true
	}
	var rest []string
	for key := range l.Specs {
		if key = strings.TrimSpace(key); key != "" && !seen[key] {
			rest = append(rest, key)
			seen[key] = true
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// MergeEnvLayers resolves the layers into one ordered list. Each key appears
// once, carrying the value and position of the last layer that declares it.
func MergeEnvLayers(layers ...EnvLayer) []string {
	if len(layers) == 0 {
		return nil
	}
	ordered := make([][]string, len(layers))
	winner := make(map[string]int)
	for i, layer := range layers {
		ordered[i] = layer.keys()
		for _, key := range ordered[i] {
			winner[key] = i
		}
	}

	result := make([]string, 0, len(winner))
	for i, keys := range ordered {
		for _, key := range keys {
			if winner[key] == i {
				result = append(result, layers[i].Specs[key])
			}
		}
	}
	return result
}
