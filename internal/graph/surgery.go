package graph

import (
	"errors"
	"fmt"
	"sort"
)

// Surgery errors.
var (
	ErrEmptySurgery     = errors.New("surgery needs a branch and a placeholder")
	ErrUnknownBranch    = errors.New("branch not in hierarchy")
	ErrDetachedBranch   = errors.New("branch has no parent")
	ErrPlaceholderInUse = errors.New("placeholder already names an entity")
)

// SurgeryConfig describes a scripted structural edit: Branch is dissolved,
// the children listed in Retain are promoted to Branch's parent and the
// remaining children are gathered under the new Placeholder node, which
// itself becomes a child of Branch's parent.
type SurgeryConfig struct {
	Branch      string   `yaml:"branch" json:"branch"`
	Retain      []string `yaml:"retain" json:"retain"`
	Placeholder string   `yaml:"placeholder" json:"placeholder"`
}

// Enabled reports whether the config describes an edit at all.
func (c SurgeryConfig) Enabled() bool {
	return c.Branch != "" || c.Placeholder != ""
}

// SurgeryReport summarizes what Dissolve moved.
type SurgeryReport struct {
	// Parent is the former parent of the dissolved branch.
	Parent string `json:"parent"`

	// Promoted are the retained children now under Parent.
	Promoted []string `json:"promoted"`

	// Relocated are the children now under the placeholder.
	Relocated []string `json:"relocated"`

	// IgnoredRetain are retain names that were not children of the branch.
	IgnoredRetain []string `json:"ignored_retain,omitempty"`
}

// Dissolve applies cfg to a copy of h and returns the revised hierarchy.
// h itself is never modified.
func Dissolve(h *Hierarchy, cfg SurgeryConfig) (*Hierarchy, *SurgeryReport, error) {
	if cfg.Branch == "" || cfg.Placeholder == "" {
		return nil, nil, ErrEmptySurgery
	}

	parent, hasParent := h.Parent(cfg.Branch)
	children := h.Children(cfg.Branch)
	if !hasParent && len(children) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownBranch, cfg.Branch)
	}
	if !hasParent {
		return nil, nil, fmt.Errorf("%w: %s", ErrDetachedBranch, cfg.Branch)
	}
	if parent == cfg.Branch {
		return nil, nil, &CycleError{Path: []string{cfg.Branch, cfg.Branch}}
	}
	if h.Has(cfg.Placeholder) {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlaceholderInUse, cfg.Placeholder)
	}

	retain := make(map[string]bool, len(cfg.Retain))
	for _, name := range cfg.Retain {
		retain[name] = true
	}

	report := &SurgeryReport{Parent: parent, Promoted: []string{}, Relocated: []string{}}
	out := h.Clone()

	for _, child := range children {
		out.unlink(child)
		if retain[child] {
			out.link(child, parent)
			report.Promoted = append(report.Promoted, child)
			delete(retain, child)
			continue
		}
		out.link(child, cfg.Placeholder)
		report.Relocated = append(report.Relocated, child)
	}

	out.unlink(cfg.Branch)
	delete(out.children, cfg.Branch)
	out.link(cfg.Placeholder, parent)

	for name := range retain {
		report.IgnoredRetain = append(report.IgnoredRetain, name)
	}
	sort.Strings(report.IgnoredRetain)

	return out, report, nil
}
