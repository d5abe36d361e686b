package graph

import "sort"

// Move records a name whose parent changed between two hierarchies. An
// empty From or To means the name had no parent on that side.
type Move struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// DiffResult lists structural changes between two hierarchies.
type DiffResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Moved   []Move   `json:"moved"`
}

// Empty reports whether the two hierarchies were structurally identical.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Moved) == 0
}

// Diff compares before and after. All slices are sorted by name.
func Diff(before, after *Hierarchy) DiffResult {
	result := DiffResult{Added: []string{}, Removed: []string{}, Moved: []Move{}}

	beforeNames := toSet(before.Names())
	afterNames := toSet(after.Names())

	for _, name := range after.Names() {
		if !beforeNames[name] {
			result.Added = append(result.Added, name)
		}
	}
	for _, name := range before.Names() {
		if !afterNames[name] {
			result.Removed = append(result.Removed, name)
			continue
		}
		from, _ := before.Parent(name)
		to, _ := after.Parent(name)
		if from != to {
			result.Moved = append(result.Moved, Move{Name: name, From: from, To: to})
		}
	}
	return result
}

// Reassignment records a name whose major branch changed.
type Reassignment struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// DiffClassifications lists names classified on both sides whose major
// branch differs, sorted by name.
func DiffClassifications(before, after *Classification) []Reassignment {
	out := []Reassignment{}
	if before == nil || after == nil {
		return out
	}
	for name, from := range before.CategoryToMajorBranch {
		to, ok := after.CategoryToMajorBranch[name]
		if ok && to != from {
			out = append(out, Reassignment{Name: name, From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
