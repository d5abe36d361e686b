// Package ingestion turns a schema document into the served artifacts:
// three ordered trees and the canonical and revised major-branch
// classifications.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Benny93/biotree-go/internal/config"
	"github.com/Benny93/biotree-go/internal/graph"
	"github.com/Benny93/biotree-go/internal/naming"
	"github.com/Benny93/biotree-go/internal/schema"
)

// Options configures a pipeline run.
type Options struct {
	PredicateRoot string
	CategoryRoot  string
	AspectEnum    string
	Surgery       graph.SurgeryConfig
	Logger        *slog.Logger
}

// OptionsFromConfig derives pipeline options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		PredicateRoot: cfg.Roots.Predicate,
		CategoryRoot:  cfg.Roots.Category,
		AspectEnum:    cfg.Source.AspectEnum,
		Surgery:       cfg.Surgery.Graph(),
		Logger:        logger,
	}
}

func (o Options) withDefaults() Options {
	if o.PredicateRoot == "" {
		o.PredicateRoot = "related_to"
	}
	if o.CategoryRoot == "" {
		o.CategoryRoot = "NamedThing"
	}
	if o.AspectEnum == "" {
		o.AspectEnum = schema.DefaultAspectEnum
	}
	if o.Logger == nil {
		o.Logger = config.Discard()
	}
	return o
}

// Stats summarizes a pipeline run.
type Stats struct {
	Slots        int     `json:"slots"`
	Classes      int     `json:"classes"`
	Aspects      int     `json:"aspects"`
	Categories   int     `json:"categories"`
	Predicates   int     `json:"predicates"`
	Conflicts    int     `json:"conflicts"`
	DurationSecs float64 `json:"duration_secs"`
}

// Result holds every artifact produced for one schema version.
type Result struct {
	Ref       string `json:"ref"`
	Version   string `json:"version"`
	Available bool   `json:"available"`

	Categories *graph.TreeNode `json:"categories"`
	Predicates *graph.TreeNode `json:"predicates"`
	Aspects    *graph.TreeNode `json:"aspects"`

	Branches        *graph.Classification `json:"branches"`
	RevisedBranches *graph.Classification `json:"revised_branches"`
	Surgery         *graph.SurgeryReport  `json:"surgery,omitempty"`

	Conflicts []graph.Conflict `json:"conflicts"`
	Stats     Stats            `json:"stats"`

	// Mixins holds the converted names of entities declared with mixin: true.
	Mixins map[string]bool `json:"-"`

	// Err is set when an artifact could not be derived, for example because
	// the schema declares a cycle.
	Err error `json:"-"`

	CategoryHierarchy  *graph.Hierarchy `json:"-"`
	PredicateHierarchy *graph.Hierarchy `json:"-"`
	AspectHierarchy    *graph.Hierarchy `json:"-"`
	RevisedHierarchy   *graph.Hierarchy `json:"-"`
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

const tracerName = "github.com/Benny93/biotree-go/internal/ingestion"

// Run fetches the document for ref from src and derives all artifacts.
//
// A missing or unreadable document is not an error: the result is marked
// unavailable and carries root-only trees and empty classifications. Every
// call starts from scratch; nothing is shared between runs.
func Run(ctx context.Context, src schema.Source, ref string, opts Options, progress ProgressCallback) *Result {
	opts = opts.withDefaults()
	start := time.Now()
	report := func(phase string, pct float64) {
		if progress != nil {
			progress(phase, pct)
		}
	}

	if ref == "" {
		ref = schema.DefaultRef
	}
	log := opts.Logger.With("ref", ref)
	res := emptyResult(ref, opts)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingestion.Run",
		trace.WithAttributes(attribute.String("biolink.ref", ref)))
	defer span.End()

	report("Fetching schema", 0.0)
	data, err := src.Fetch(ctx, ref)
	if err != nil {
		log.Warn("schema unavailable", "error", err)
		span.AddEvent("schema unavailable", trace.WithAttributes(attribute.String("error", err.Error())))
		return finish(res, start, outcomeUnavailable)
	}
	report("Fetching schema", 1.0)

	report("Parsing schema", 0.0)
	doc, err := schema.Parse(data, schema.ParseOptions{AspectEnum: opts.AspectEnum})
	if err != nil {
		log.Warn("schema unreadable", "error", err)
		span.AddEvent("schema unreadable", trace.WithAttributes(attribute.String("error", err.Error())))
		return finish(res, start, outcomeUnavailable)
	}
	report("Parsing schema", 1.0)

	res.Available = true
	res.Version = doc.Version
	span.SetAttributes(attribute.String("biolink.version", doc.Version))
	log.Debug("schema parsed", "version", doc.Version,
		"slots", len(doc.Slots), "classes", len(doc.Classes), "aspects", len(doc.Aspects))

	if err := Build(res, doc, opts, report); err != nil {
		log.Error("building artifacts", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "building artifacts")
		return finish(res, start, outcomeFailed)
	}
	return finish(res, start, outcomeOK)
}

// Build derives all artifacts of doc into res. On error res keeps whatever
// was built before the failing step and res.Err is set.
func Build(res *Result, doc *schema.Document, opts Options, progress ProgressCallback) error {
	opts = opts.withDefaults()
	report := func(phase string, pct float64) {
		if progress != nil {
			progress(phase, pct)
		}
	}
	log := opts.Logger.With("ref", res.Ref)

	res.Stats.Slots = len(doc.Slots)
	res.Stats.Classes = len(doc.Classes)
	res.Stats.Aspects = len(doc.Aspects)

	report("Indexing hierarchies", 0.0)
	res.PredicateHierarchy = index(doc.Slots, naming.Relation)
	res.CategoryHierarchy = index(doc.Classes, naming.Category)
	res.AspectHierarchy = index(doc.Aspects, naming.Relation)
	res.Mixins = make(map[string]bool)
	collectMixins(res.Mixins, doc.Slots, naming.Relation)
	collectMixins(res.Mixins, doc.Classes, naming.Category)
	report("Indexing hierarchies", 1.0)

	res.Conflicts = res.Conflicts[:0]
	for _, h := range []*graph.Hierarchy{res.PredicateHierarchy, res.CategoryHierarchy, res.AspectHierarchy} {
		for _, c := range h.Conflicts() {
			log.Warn("multiple parents declared, keeping first",
				"child", c.Child, "kept", c.Kept, "rejected", c.Rejected,
				"mixin", res.Mixins[c.Child])
			res.Conflicts = append(res.Conflicts, c)
		}
	}
	res.Stats.Conflicts = len(res.Conflicts)

	report("Building trees", 0.0)
	var err error
	if res.Predicates, err = graph.BuildTree(opts.PredicateRoot, res.PredicateHierarchy); err != nil {
		return fail(res, opts, fmt.Errorf("predicate tree: %w", err))
	}
	if res.Categories, err = graph.BuildTree(opts.CategoryRoot, res.CategoryHierarchy); err != nil {
		return fail(res, opts, fmt.Errorf("category tree: %w", err))
	}
	if res.Aspects, err = graph.BuildTree(naming.Relation(opts.AspectEnum), res.AspectHierarchy); err != nil {
		return fail(res, opts, fmt.Errorf("aspect tree: %w", err))
	}
	res.Stats.Categories = res.Categories.Count()
	res.Stats.Predicates = res.Predicates.Count()
	report("Building trees", 1.0)

	report("Classifying categories", 0.0)
	majors := graph.MajorBranches(res.CategoryHierarchy, opts.CategoryRoot)
	if res.Branches, err = graph.Classify(res.CategoryHierarchy, majors); err != nil {
		return fail(res, opts, fmt.Errorf("classifying categories: %w", err))
	}
	report("Classifying categories", 1.0)

	if !opts.Surgery.Enabled() {
		res.RevisedHierarchy = res.CategoryHierarchy
		res.RevisedBranches = res.Branches
		return nil
	}

	report("Applying surgery", 0.0)
	revised, surgery, err := graph.Dissolve(res.CategoryHierarchy, opts.Surgery)
	if err != nil {
		// A schema that lacks the configured branch still serves the
		// canonical view; the revised view mirrors it.
		log.Warn("surgery skipped", "branch", opts.Surgery.Branch, "error", err)
		res.RevisedHierarchy = res.CategoryHierarchy
		res.RevisedBranches = res.Branches
		report("Applying surgery", 1.0)
		return nil
	}
	for _, name := range surgery.IgnoredRetain {
		log.Warn("retained name is not a child of the dissolved branch",
			"branch", opts.Surgery.Branch, "name", name)
	}
	res.Surgery = surgery
	res.RevisedHierarchy = revised
	revisedMajors := graph.MajorBranches(revised, opts.CategoryRoot)
	if res.RevisedBranches, err = graph.Classify(revised, revisedMajors); err != nil {
		return fail(res, opts, fmt.Errorf("classifying revised categories: %w", err))
	}
	report("Applying surgery", 1.0)

	return nil
}

// index converts entity names and indexes their is-a links in declaration
// order.
func index(entities []schema.Entity, convert func(string) string) *graph.Hierarchy {
	h := graph.NewHierarchy()
	for _, e := range entities {
		if e.Parent == "" {
			continue
		}
		h.Add(convert(e.Name), convert(e.Parent))
	}
	return h
}

func collectMixins(into map[string]bool, entities []schema.Entity, convert func(string) string) {
	for _, e := range entities {
		if e.Mixin {
			into[convert(e.Name)] = true
		}
	}
}

// emptyResult is the unavailable-schema shape: root-only trees and empty
// classifications.
func emptyResult(ref string, opts Options) *Result {
	empty := graph.NewHierarchy()
	return &Result{
		Ref:                ref,
		Categories:         &graph.TreeNode{Name: opts.CategoryRoot},
		Predicates:         &graph.TreeNode{Name: opts.PredicateRoot},
		Aspects:            &graph.TreeNode{Name: naming.Relation(opts.AspectEnum)},
		Branches:           graph.EmptyClassification(),
		RevisedBranches:    graph.EmptyClassification(),
		Conflicts:          []graph.Conflict{},
		Mixins:             map[string]bool{},
		CategoryHierarchy:  empty,
		PredicateHierarchy: empty,
		AspectHierarchy:    empty,
		RevisedHierarchy:   empty,
	}
}

// fail records err and resets the derived artifacts to the empty shape so a
// partially built result is never served as if complete.
func fail(res *Result, opts Options, err error) error {
	blank := emptyResult(res.Ref, opts)
	res.Categories, res.Predicates, res.Aspects = blank.Categories, blank.Predicates, blank.Aspects
	res.Branches, res.RevisedBranches = blank.Branches, blank.RevisedBranches
	res.Surgery = nil
	res.Err = err
	return err
}

func finish(res *Result, start time.Time, outcome string) *Result {
	elapsed := time.Since(start)
	res.Stats.DurationSecs = elapsed.Seconds()
	observeRun(outcome, elapsed)
	return res
}

// IsCycle reports whether the result failed on a cyclic hierarchy.
func (r *Result) IsCycle() bool {
	return r != nil && errors.Is(r.Err, graph.ErrCycleDetected)
}
