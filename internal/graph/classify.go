package graph

import "sort"

// Classification maps every classified name to its nearest major branch and
// groups the non-self descendants of each major branch.
type Classification struct {
	// CategoryToMajorBranch maps a name to the major branch it descends from.
	// A major branch maps to itself.
	CategoryToMajorBranch map[string]string `json:"category_to_major_branch"`

	// MajorBranchToDescendants lists, sorted, the names classified under each
	// major branch, excluding the branch itself.
	MajorBranchToDescendants map[string][]string `json:"major_branch_to_descendants"`
}

// MajorBranch returns the major branch of name, if it has one.
func (c *Classification) MajorBranch(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	b, ok := c.CategoryToMajorBranch[name]
	return b, ok
}

// Branches returns the major branch names, sorted.
func (c *Classification) Branches() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.MajorBranchToDescendants))
	for b := range c.MajorBranchToDescendants {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// EmptyClassification returns a classification with no entries.
func EmptyClassification() *Classification {
	return &Classification{
		CategoryToMajorBranch:    map[string]string{},
		MajorBranchToDescendants: map[string][]string{},
	}
}

// MajorBranches returns the direct children of root, the default set of
// major branches.
func MajorBranches(h *Hierarchy, root string) []string {
	return h.Children(root)
}

// Classify assigns every name in h to its nearest ancestor among majors.
//
// The child -> parent lookup is built by visiting parents in sorted order;
// if a child were listed under several parents the last one visited would
// win. A Hierarchy never holds such a child, so the lookup always matches
// Hierarchy.Parent. Names whose ancestry never reaches a major branch are
// left out. Major branches unknown to h are ignored.
func Classify(h *Hierarchy, majors []string) (*Classification, error) {
	result := EmptyClassification()
	if h == nil {
		return result, nil
	}

	isMajor := make(map[string]bool, len(majors))
	for _, m := range majors {
		if h.Has(m) {
			isMajor[m] = true
		}
	}

	parentOf := invert(h)

	candidates := make([]string, 0, len(parentOf)+len(isMajor))
	for child := range parentOf {
		candidates = append(candidates, child)
	}
	for m := range isMajor {
		if _, ok := parentOf[m]; !ok {
			candidates = append(candidates, m)
		}
	}
	sort.Strings(candidates)

	for _, name := range candidates {
		branch, ok, err := nearestMajor(name, parentOf, isMajor)
		if err != nil {
			return nil, err
		}
		if ok {
			result.CategoryToMajorBranch[name] = branch
		}
	}

	for m := range isMajor {
		result.MajorBranchToDescendants[m] = []string{}
	}
	for name, branch := range result.CategoryToMajorBranch {
		if name != branch {
			result.MajorBranchToDescendants[branch] = append(result.MajorBranchToDescendants[branch], name)
		}
	}
	for _, names := range result.MajorBranchToDescendants {
		sort.Strings(names)
	}

	return result, nil
}

func invert(h *Hierarchy) map[string]string {
	parents := make([]string, 0, len(h.children))
	for p := range h.children {
		parents = append(parents, p)
	}
	sort.Strings(parents)

	parentOf := make(map[string]string, len(h.parent))
	for _, p := range parents {
		for child := range h.children[p] {
			parentOf[child] = p
		}
	}
	return parentOf
}

// nearestMajor walks upward from name until a major branch is met or the
// parent links run out.
func nearestMajor(name string, parentOf map[string]string, isMajor map[string]bool) (string, bool, error) {
	seen := make(map[string]bool)
	path := []string{}
	for cur := name; ; {
		if isMajor[cur] {
			return cur, true, nil
		}
		if seen[cur] {
			return "", false, &CycleError{Path: append(path, cur)}
		}
		seen[cur] = true
		path = append(path, cur)

		p, ok := parentOf[cur]
		if !ok {
			return "", false, nil
		}
		cur = p
	}
}
