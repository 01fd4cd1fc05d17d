package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultTimeFallback is the sort key used for items without a time.
const DefaultTimeFallback = "23:59"

type Group[K any, T any] struct {
	Key   K
	Items []T
}

// GroupBy buckets items by key. Groups are ordered by ascending key and items
// keep their input order inside each group.
func GroupBy[T any, K cmp.Ordered](items []T, keyFn func(T) K) []Group[K, T] {
	return GroupByFunc(items, keyFn, cmp.Compare[K])
}

// GroupByFunc is GroupBy with a caller-supplied key order, for keys such as
// time.Time that are not cmp.Ordered. Keys comparing equal share a group.
func GroupByFunc[T any, K any](items []T, keyFn func(T) K, compare func(a, b K) int) []Group[K, T] {
	groups := make([]Group[K, T], 0)
	for _, item := range items {
		key := keyFn(item)
		idx, found := slices.BinarySearchFunc(groups, key, func(g Group[K, T], k K) int {
			return compare(g.Key, k)
		})
		if found {
			groups[idx].Items = append(groups[idx].Items, item)
			continue
		}
		groups = slices.Insert(groups, idx, Group[K, T]{Key: key, Items: []T{item}})
	}
	return groups
}

// SortWithinGroup orders items by a time-of-day string ascending. Empty or
// malformed times sort as fallback. Equal keys keep their input order.
func SortWithinGroup[T any](items []T, timeFn func(T) string, fallback string) {
	fb, ok := NormalizeTime(fallback)
	if !ok {
		fb = DefaultTimeFallback
	}
	slices.SortStableFunc(items, func(a, b T) int {
		return strings.Compare(sortKey(timeFn(a), fb), sortKey(timeFn(b), fb))
	})
}

func sortKey(raw string, fallback string) string {
	if t, ok := NormalizeTime(raw); ok {
		return t
	}
	return fallback
}

// NormalizeTime converts "H:MM", "HH:MM" or "HH:MM:SS" to zero-padded
// "HH:MM" so lexical order equals chronological order.
func NormalizeTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// Keys lists group keys in group order.
func Keys[K any, T any](groups []Group[K, T]) []K {
	keys := make([]K, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	return keys
}
