// Package engine orchestrates document decomposition and consistency
// maintenance: analyze, decide, split, reconcile, inspect, repair.
//
// An Engine is the explicit per-request context object: it owns no
// shared mutable process state, takes no locks, and assumes the caller
// serializes mutating operations per vault. Every mutating operation
// supports dry-run, producing the same result shape with zero writes.
// After each real write the engine signals the metadata index to
// reindex; the index itself is an external collaborator.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/consistency"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/hub"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/index"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/oplog"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/splitter"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Engine ties the analyzer, splitter, hub manager, and consistency
// components to the vault's collaborators.
type Engine struct {
	store vault.Store
	idx   index.Index
	log   oplog.Log
	cfg   *config.VaultConfig
}

// New creates an engine. A nil log disables audit events.
func New(store vault.Store, idx index.Index, log oplog.Log, cfg *config.VaultConfig) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, Validationf("%v", err)
	}
	if log == nil {
		log = oplog.Nop{}
	}
	return &Engine{store: store, idx: idx, log: log, cfg: cfg}, nil
}

// Config returns the engine's vault configuration.
func (e *Engine) Config() *config.VaultConfig { return e.cfg }

// AnalysisReport pairs a structural profile with its split decision.
type AnalysisReport struct {
	Path     string            `json:"path"`
	Profile  *analyzer.Profile `json:"profile"`
	Decision splitter.Decision `json:"decision"`
}

// Analyze profiles one document and evaluates the split thresholds.
// Read-only.
func (e *Engine) Analyze(docPath string) (*AnalysisReport, error) {
	doc, err := e.readDocument(docPath)
	if err != nil {
		return nil, err
	}
	p, err := analyzer.Analyze(doc.Body, analyzer.Options{SectionMaxLines: e.cfg.SectionMaxLines})
	if err != nil {
		return nil, Validationf("%v", err)
	}
	if p.Title == "" {
		p.Title = doc.Title()
	}
	return &AnalysisReport{
		Path:     docPath,
		Profile:  p,
		Decision: splitter.Decide(p, e.cfg),
	}, nil
}

// SplitOptions direct a split operation.
type SplitOptions struct {
	// TargetDir overrides where children are written (vault-relative).
	TargetDir string
	// Title overrides the parent title used for child naming.
	Title string
	// Force splits even when the decision says the document is within
	// limits (requires at least two sections).
	Force  bool
	DryRun bool
}

// SplitReport is the outcome of a split call. With Performed false the
// document was within limits and nothing was computed beyond the
// decision.
type SplitReport struct {
	Path      string                `json:"path"`
	Performed bool                  `json:"performed"`
	DryRun    bool                  `json:"dry_run"`
	Decision  splitter.Decision     `json:"decision"`
	Result    *splitter.SplitResult `json:"result,omitempty"`
	Created   []string              `json:"created,omitempty"`
}

// Split analyzes a document and, when thresholds are exceeded (or Force
// is set), decomposes it into a hub plus children. The full result is
// computed and validated in memory before anything is written; a child
// path collision aborts with ConflictError before the first write.
func (e *Engine) Split(docPath string, opts SplitOptions) (*SplitReport, error) {
	doc, err := e.readDocument(docPath)
	if err != nil {
		return nil, err
	}
	report, err := e.Analyze(docPath)
	if err != nil {
		return nil, err
	}

	decision := report.Decision
	if !decision.ShouldSplit {
		if !opts.Force {
			return &SplitReport{Path: docPath, DryRun: opts.DryRun, Decision: decision}, nil
		}
		decision.ShouldSplit = true
		decision.Strategy = splitter.StrategyBySections
		decision.Reason = "split forced by caller"
	}

	res, err := splitter.Split(doc, report.Profile, decision, splitter.Options{
		TargetDir:   opts.TargetDir,
		Title:       opts.Title,
		HubSections: e.cfg.HubSections,
	})
	if err != nil {
		return nil, Validationf("%v", err)
	}

	for _, c := range res.Children {
		if e.store.Exists(c.RelativePath) {
			return nil, &ConflictError{Path: c.RelativePath}
		}
	}

	out := &SplitReport{
		Path:      docPath,
		Performed: true,
		DryRun:    opts.DryRun,
		Decision:  decision,
		Result:    res,
	}
	for _, c := range res.Children {
		out.Created = append(out.Created, c.RelativePath)
	}
	if opts.DryRun {
		return out, nil
	}

	opID, err := e.log.StartOperation("split")
	if err != nil {
		return nil, fmt.Errorf("starting operation: %w", err)
	}
	for _, c := range res.Children {
		if err := e.store.WriteDocument(c.Doc); err != nil {
			return nil, err
		}
		_ = e.log.TrackFileCreated(opID, c.RelativePath)
	}
	if err := e.store.WriteDocument(res.Hub); err != nil {
		return nil, err
	}
	_ = e.log.TrackFileModified(opID, res.Hub.Path)
	_ = e.log.EndOperation(opID)

	e.resync(append(out.Created, res.Hub.Path)...)
	return out, nil
}

// CreateHub writes a new hub document with an initial Knowledge Map.
func (e *Engine) CreateHub(dir, title string, children []hub.ChildRef, dryRun bool) (vault.Document, error) {
	doc, err := hub.BuildHub(dir, title, children)
	if err != nil {
		return vault.Document{}, Validationf("%v", err)
	}
	if e.store.Exists(doc.Path) {
		return vault.Document{}, &ConflictError{Path: doc.Path}
	}
	if dryRun {
		return doc, nil
	}

	opID, err := e.log.StartOperation("create_hub")
	if err != nil {
		return vault.Document{}, fmt.Errorf("starting operation: %w", err)
	}
	if err := e.store.WriteDocument(doc); err != nil {
		return vault.Document{}, err
	}
	_ = e.log.TrackFileCreated(opID, doc.Path)
	_ = e.log.EndOperation(opID)

	e.resync(doc.Path)
	return doc, nil
}

// CreateNoteParams holds input for CreateChildNote.
type CreateNoteParams struct {
	Dir     string
	Title   string
	Content string
	// HubPath names the hub to register the note under when AddToHub is
	// set. Without AddToHub the note is standalone and becomes an
	// orphan candidate until a reconcile pass picks it up.
	HubPath  string
	AddToHub bool
	DryRun   bool
}

// CreateChildNote writes a child note, optionally appending it to a
// hub's Knowledge Map and bumping the hub's cached children count in
// the same operation.
func (e *Engine) CreateChildNote(p CreateNoteParams) (vault.Document, error) {
	doc, err := hub.BuildChildNote(p.Dir, p.Title, p.Content)
	if err != nil {
		return vault.Document{}, Validationf("%v", err)
	}
	if e.store.Exists(doc.Path) {
		return vault.Document{}, &ConflictError{Path: doc.Path}
	}

	var updatedHub *vault.Document
	if p.AddToHub {
		if p.HubPath == "" {
			return vault.Document{}, Validationf("add_to_hub requires hub_path")
		}
		hubDoc, err := e.readDocument(p.HubPath)
		if err != nil {
			return vault.Document{}, err
		}
		if !hub.IsHub(hubDoc, e.cfg) {
			return vault.Document{}, Validationf("%s is not a hub", p.HubPath)
		}
		appended, err := hub.AppendKnowledgeMapEntry(hubDoc, hub.ChildRef{
			Title:       doc.Title(),
			Description: hub.Describe(strings.Split(p.Content, "\n")),
		})
		if err != nil {
			return vault.Document{}, Validationf("%v", err)
		}
		updatedHub = &appended
	}
	if p.DryRun {
		return doc, nil
	}

	opID, err := e.log.StartOperation("create_note")
	if err != nil {
		return vault.Document{}, fmt.Errorf("starting operation: %w", err)
	}
	if err := e.store.WriteDocument(doc); err != nil {
		return vault.Document{}, err
	}
	_ = e.log.TrackFileCreated(opID, doc.Path)

	touched := []string{doc.Path}
	if updatedHub != nil {
		if err := e.store.WriteDocument(*updatedHub); err != nil {
			return vault.Document{}, err
		}
		_ = e.log.TrackFileModified(opID, updatedHub.Path)
		touched = append(touched, updatedHub.Path)
	}
	_ = e.log.EndOperation(opID)

	e.resync(touched...)
	return doc, nil
}

// ReconcileReport is the outcome of a reconcile pass.
type ReconcileReport struct {
	HubPath string   `json:"hub_path"`
	DryRun  bool     `json:"dry_run"`
	Added   []string `json:"added,omitempty"`
}

// Reconcile heals a hub's Knowledge Map against the actual sibling file
// set: correctly prefixed siblings missing from the map are appended.
// Safe to retry: a second pass with no intervening writes adds nothing.
func (e *Engine) Reconcile(hubPath string, dryRun bool) (*ReconcileReport, error) {
	hubDoc, err := e.readDocument(hubPath)
	if err != nil {
		return nil, err
	}
	if !hub.IsHub(hubDoc, e.cfg) {
		return nil, Validationf("%s is not a hub", hubPath)
	}

	dir := path.Dir(hubPath)
	if dir == "." {
		dir = ""
	}
	paths, err := e.store.ListDocuments(dir)
	if err != nil {
		return nil, err
	}

	var siblings []vault.Document
	var dirHubs []hub.Ref
	for _, p := range paths {
		parent := path.Dir(p)
		if parent == "." {
			parent = ""
		}
		if parent != dir {
			continue
		}
		doc, err := e.readDocument(p)
		if err != nil {
			return nil, err
		}
		siblings = append(siblings, doc)
		if hub.IsHub(doc, e.cfg) {
			dirHubs = append(dirHubs, hub.Ref{Path: p, Title: doc.Title()})
		}
	}

	res, err := hub.ReconcileHubChildren(hubDoc, siblings, dirHubs)
	if err != nil {
		return nil, Validationf("%v", err)
	}

	report := &ReconcileReport{HubPath: hubPath, DryRun: dryRun, Added: res.Added}
	if dryRun || len(res.Added) == 0 {
		return report, nil
	}

	opID, err := e.log.StartOperation("reconcile")
	if err != nil {
		return nil, fmt.Errorf("starting operation: %w", err)
	}
	if err := e.store.WriteDocument(res.Hub); err != nil {
		return nil, err
	}
	_ = e.log.TrackFileModified(opID, hubPath)
	_ = e.log.EndOperation(opID)

	e.resync(hubPath)
	return report, nil
}

// Inspect scans the corpus for the requested drift categories using the
// metadata index for enumeration. Read-only; limit 0 means no limit.
func (e *Engine) Inspect(categories []consistency.Category, limit int) ([]consistency.Issue, error) {
	entries, err := e.idx.All()
	if err != nil {
		return nil, err
	}
	listings := make([]consistency.Listing, len(entries))
	for i, en := range entries {
		listings[i] = consistency.Listing{Path: en.Path, Title: en.Title, Kind: en.Kind}
	}
	inspector := consistency.NewInspector(listings, e.store, e.cfg)
	issues, err := inspector.Scan(categories, limit)
	if err != nil {
		return nil, Validationf("%v", err)
	}
	return issues, nil
}

// Repair applies the given fixable issues. Per-item failures do not
// abort the batch; a mixed outcome returns the result alongside a
// PartialFailureError.
func (e *Engine) Repair(issues []consistency.Issue, dryRun bool) (consistency.Result, error) {
	exec := consistency.NewExecutor(e.store, dryRun)

	var opID string
	if !dryRun {
		var err error
		opID, err = e.log.StartOperation("repair")
		if err != nil {
			return consistency.Result{}, fmt.Errorf("starting operation: %w", err)
		}
	}

	res := exec.Apply(issues)

	if !dryRun {
		for _, fixed := range res.Fixed {
			if newPath, renamed := res.Renamed[fixed.Path]; renamed {
				_ = e.log.TrackFileCreated(opID, newPath)
				_ = e.log.TrackFileDeleted(opID, fixed.Path)
				e.resync(fixed.Path, newPath)
				continue
			}
			_ = e.log.TrackFileModified(opID, fixed.Path)
			e.resync(fixed.Path)
		}
		_ = e.log.EndOperation(opID)
	}

	if len(res.Errors) > 0 {
		msgs := make([]string, len(res.Errors))
		for i, fe := range res.Errors {
			msgs[i] = fmt.Sprintf("%s %s: %s", fe.Issue.Category, fe.Issue.Path, fe.Err)
		}
		return res, &PartialFailureError{Fixed: len(res.Fixed), Errors: msgs}
	}
	return res, nil
}

// readDocument wraps store reads with NotFound typing.
func (e *Engine) readDocument(docPath string) (vault.Document, error) {
	doc, err := e.store.ReadDocument(docPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vault.Document{}, &NotFoundError{Path: docPath}
		}
		return vault.Document{}, err
	}
	return doc, nil
}

// resync signals the index collaborator after writes. Index failures
// are non-fatal: the corpus is already correct on disk and the next
// rebuild catches up.
func (e *Engine) resync(paths ...string) {
	if e.idx == nil {
		return
	}
	for _, p := range paths {
		_ = e.idx.Reindex(p)
	}
}
