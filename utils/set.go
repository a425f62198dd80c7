package utils

import (
	"sort"
	"sync"
)

// Set is a concurrency-safe unordered collection, kept from the teacher's
// sync.Map-backed implementation.
type Set struct {
	Map sync.Map
}

func NewSet() *Set {
	return &Set{}
}

func (set *Set) Copy() *Set {
	res := NewSet()
	for _, item := range set.Elements() {
		res.Add(item)
	}
	return res
}

func (set *Set) Add(e interface{}) (b bool) {
	_, exist := set.Map.LoadOrStore(e, true)
	return !exist
}

func (set *Set) Remove(e interface{}) {
	set.Map.Delete(e)
}

func (set *Set) Contains(e interface{}) bool {
	_, ok := set.Map.Load(e)
	return ok
}

func (set *Set) Elements() []interface{} {
	res := make([]interface{}, 0)
	set.Map.Range(func(k, v interface{}) bool {
		res = append(res, k)
		return true
	})
	return res
}

func (set *Set) Len() int {
	return len(set.Elements())
}

func (set *Set) Union(other *Set) *Set {
	res := NewSet()
	for _, item := range set.Elements() {
		res.Add(item)
	}
	for _, item := range other.Elements() {
		res.Add(item)
	}
	return res
}

// SortedInts returns the set's elements as ints in ascending order,
// panicking if an element is not an int. spec §9 requires every iteration
// over a set of offsets (successors, taint paths, jump destinations) to
// happen in a stable order; those call sites sort plain map keys with
// sort.Ints and do not use this helper.
func (set *Set) SortedInts() []int {
	raw := set.Elements()
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		out = append(out, e.(int))
	}
	sort.Ints(out)
	return out
}
