package tidy

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Resolver hands out collision-free destination paths. A path is taken when
// it exists on disk or was returned by an earlier Resolve call on the same
// Resolver, so one Resolver must be used per plan.
type Resolver struct {
	exists  func(string) bool
	claimed map[string]struct{}
}

// NewResolver creates a Resolver that checks live existence with exists.
func NewResolver(exists func(string) bool) *Resolver {
	return &Resolver{
		exists:  exists,
		claimed: make(map[string]struct{}),
	}
}

// Resolve returns dir/name when it is free, otherwise the first free
// name_1.ext, name_2.ext, and so on. The returned path is claimed.
func (r *Resolver) Resolve(dir, name string) string {
	stem, ext := splitName(name)
	candidate := filepath.Join(dir, name)
	for i := 1; r.taken(candidate); i++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
	}
	r.Claim(candidate)
	return candidate
}

// Claim marks path as taken without resolving it.
func (r *Resolver) Claim(path string) {
	r.claimed[filepath.Clean(path)] = struct{}{}
}

func (r *Resolver) taken(path string) bool {
	if _, ok := r.claimed[filepath.Clean(path)]; ok {
		return true
	}
	return r.exists != nil && r.exists(path)
}

// splitName splits before the final extension. Dotfiles keep their whole
// name as the stem.
func splitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	if ext == name || strings.TrimLeft(name, ".") == strings.TrimPrefix(ext, ".") {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
