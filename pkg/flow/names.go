package flow

import (
	"strconv"

	"github.com/dukex/stepflow/pkg/models"
)

const stepNamePrefix = "step_"

// FindUnusedName returns the first step_N, counting from 1, absent from existing.
func FindUnusedName(existing []string) string {
	used := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		used[name] = struct{}{}
	}

	return nextUnused(used)
}

func nextUnused(used map[string]struct{}) string {
	for i := 1; ; i++ {
		name := stepNamePrefix + strconv.Itoa(i)
		if _, ok := used[name]; !ok {
			return name
		}
	}
}

// NameAllocator hands out unused names, remembering each one it returns.
type NameAllocator struct {
	used map[string]struct{}
}

func NewNameAllocator(existing []string) *NameAllocator {
	used := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		used[name] = struct{}{}
	}

	return &NameAllocator{used: used}
}

// Next returns a name distinct from every existing and previously allocated one.
func (a *NameAllocator) Next() string {
	name := nextUnused(a.used)
	a.used[name] = struct{}{}

	return name
}

// RenameMap allocates a new name for every step of the tree rooted at s.
// The allocator must already know every name of the enclosing tree.
func RenameMap(s models.Step, alloc *NameAllocator) map[string]string {
	renames := make(map[string]string)

	Walk(s, func(step models.Step) bool {
		renames[step.Base().Name] = alloc.Next()

		return true
	})

	return renames
}
