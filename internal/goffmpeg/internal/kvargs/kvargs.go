// Package kvargs turns option maps into ffmpeg style arguments
package kvargs

import (
	"maps"
	"slices"
	"strings"
)

// MapToSortedArgs {b: "2", a: "1"} -> [argFn("a", "1")..., argFn("b", "2")...]
// Sorted so that command lines are stable between runs.
func MapToSortedArgs(m map[string]string, argFn func(k, v string) []string) []string {
	s := make([]string, 0, len(m)*2)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		s = append(s, argFn(k, m[k])...)
	}
	return s
}

// OptionArg build a arg build function
// {"k": "v", ...} ->  ["-k"+suffix, v, ...]
func OptionArg(suffix string) func(k, v string) []string {
	return func(opt, value string) []string {
		if !strings.HasPrefix(opt, "-") {
			opt = "-" + opt
		}
		return []string{opt + suffix, value}
	}
}
