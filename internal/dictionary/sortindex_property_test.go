package dictionary

import (
	"context"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSortIndexProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sort order is a permutation of dictionary positions", prop.ForAll(
		func(values []string) bool {
			idx := ComputeSortIndex(values)
			if len(idx.SortOrder) != len(values) || len(idx.InverseSortOrder) != len(values) {
				return false
			}
			seen := make([]bool, len(values))
			for _, pos := range idx.SortOrder {
				if int(pos) >= len(values) || seen[pos] {
					return false
				}
				seen[pos] = true
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("walking sort order yields non-decreasing values", prop.ForAll(
		func(values []string) bool {
			idx := ComputeSortIndex(values)
			for i := 1; i < len(idx.SortOrder); i++ {
				if values[idx.SortOrder[i-1]] > values[idx.SortOrder[i]] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("inverse composes with sort order to the identity", prop.ForAll(
		func(values []string) bool {
			idx := ComputeSortIndex(values)
			for i, pos := range idx.SortOrder {
				if idx.InverseSortOrder[pos] != uint32(i) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("container encoding round-trips both permutations", prop.ForAll(
		func(values []string) bool {
			idx := ComputeSortIndex(values)
			decoded, err := UnmarshalSortIndex(idx.Marshal())
			if err != nil {
				return false
			}
			return reflect.DeepEqual(decoded.SortOrder, idx.SortOrder) &&
				reflect.DeepEqual(decoded.InverseSortOrder, idx.InverseSortOrder)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestDictionaryAppendProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("appends extend the dictionary without rekeying", prop.ForAll(
		func(first, second []string) bool {
			s, err := NewStore(t.TempDir(), nil, nil)
			if err != nil {
				return false
			}
			a1, _, err := s.AppendDistinctValues(context.Background(), "c-p", first)
			if err != nil {
				return false
			}
			a2, idx, err := s.AppendDistinctValues(context.Background(), "c-p", second)
			if err != nil {
				return false
			}

			dict, err := s.ReadDictionary("c-p")
			if err != nil {
				return false
			}
			for v, k := range a1.Keys {
				if got, ok := dict.Key(v); !ok || got != k {
					return false
				}
			}
			for v, k := range a2.Keys {
				if k1, ok := a1.Keys[v]; ok && k1 != k {
					return false
				}
			}

			// First-seen order is a stable prefix of the final dictionary.
			firstDistinct := distinctInOrder(first)
			got := dict.Values()
			if len(got) < len(firstDistinct) {
				return false
			}
			for i, v := range firstDistinct {
				if got[i] != v {
					return false
				}
			}
			return idx.Cardinality() == dict.Cardinality()
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func distinctInOrder(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
