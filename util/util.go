package util

import (
	"sort"

	"golang.org/x/exp/maps"
)

func Keys[K comparable, V any](m map[K]V, filter ...func(k K) bool) []K {
	if len(filter) == 0 {
		return maps.Keys(m)
	}
	ret := make([]K, 0, len(m))
	for k := range m {
		if filter[0](k) {
			ret = append(ret, k)
		}
	}
	return ret
}

func SortKeys[K comparable, V any](m map[K]V, less func(k1, k2 K) bool) []K {
	ret := Keys(m)
	sort.Slice(ret, func(i, j int) bool {
		return less(ret[i], ret[j])
	})
	return ret
}
