package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/liveedit/pkg/activestmt"
	"github.com/Sumatoshi-tech/liveedit/pkg/bodymatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/declmatch"
	"github.com/Sumatoshi-tech/liveedit/pkg/rudeedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/semedit"
	"github.com/Sumatoshi-tech/liveedit/pkg/statemachine"
	"github.com/Sumatoshi-tech/liveedit/pkg/symbols"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// analysis is the working state of one document. It never escapes a single
// goroutine.
type analysis struct {
	engine   *Engine
	req      Request
	doc      Document
	bag      *rudeedit.Bag
	cache    *bodymatch.Cache
	decls    *declmatch.Result
	byMember map[*syntax.Node][]activestmt.Statement
	verdicts map[*syntax.Node]semedit.Verdict
	result   DocumentResult
}

// analyzeDocument runs the pipeline for one document. The returned error is
// only ever a cancellation; contract failures are reported through the
// Failed state.
func (e *Engine) analyzeDocument(ctx context.Context, req Request, doc Document) (DocumentResult, error) {
	ctx, span := e.tracer.Start(ctx, "liveedit.analyze.document")
	defer span.End()

	state := &analysis{
		engine:   e,
		req:      req,
		doc:      doc,
		bag:      rudeedit.NewBag(e.opts.MaxDiagnostics),
		verdicts: make(map[*syntax.Node]semedit.Verdict),
		result:   DocumentResult{Document: doc.Path, State: Unanalyzed},
	}

	err := state.run(ctx)
	if err == nil {
		return state.result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return DocumentResult{}, ctxErr
	}

	failure := fmt.Errorf("%w: %s: %w", ErrContractViolation, doc.Path, err)

	return DocumentResult{
		Document: doc.Path,
		State:    Failed,
		Failure:  failure.Error(),
		Err:      failure,
	}, nil
}

func (a *analysis) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if a.doc.Old == nil || a.doc.New == nil {
		return errMissingTree
	}

	err := a.matchDeclarations()
	if err != nil {
		return err
	}

	a.result.State = TreeMatched

	rudeedit.ClassifyDeclarations(rudeedit.DeclarationInput{
		Document:     a.doc.Path,
		Declarations: a.decls,
		Capabilities: a.req.capabilities(),
	}, a.bag)

	err = a.assignActiveStatements()
	if err != nil {
		return err
	}

	for _, pair := range a.decls.Members() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = a.analyzeMember(pair)
		if err != nil {
			return err
		}
	}

	a.orphanDeletedMembers()

	oldComp, newComp := a.compilations()

	rudeedit.ClassifyDeletions(rudeedit.DeletionInput{
		Document: a.doc.Path,
		OldTree:  a.doc.Old,
		Deleted:  a.decls.Deleted,
		Old:      oldComp,
		New:      newComp,
	}, a.bag)

	a.result.State = RudeEditChecked
	a.finish()

	return nil
}

func (a *analysis) matchDeclarations() error {
	decls, err := declmatch.Match(a.doc.Old, a.doc.New, a.engine.matchOptions()...)
	if err != nil {
		return err
	}

	err = decls.Match.Validate()
	if err != nil {
		return fmt.Errorf("declaration match: %w", err)
	}

	a.decls = decls
	a.cache = bodymatch.NewCache(a.doc.Old, a.doc.New, a.engine.matchOptions()...)

	return nil
}

// assignActiveStatements groups the document's active statements by the old
// member that contains them.
func (a *analysis) assignActiveStatements() error {
	a.byMember = make(map[*syntax.Node][]activestmt.Statement)
	root := a.doc.Old.Root()

	for _, stmt := range a.req.ActiveStatements {
		if stmt.Document != a.doc.Path {
			continue
		}

		member := a.doc.Old.Innermost(root, stmt.Span, func(n *syntax.Node) bool {
			return n.Kind.IsMember()
		})
		if member == nil {
			return fmt.Errorf("%w: statement %d at %s", activestmt.ErrOutsideMember, stmt.Ordinal, stmt.Span)
		}

		a.byMember[member] = append(a.byMember[member], stmt)
	}

	return nil
}

func (a *analysis) analyzeMember(pair declmatch.Pair) error {
	stmts := a.byMember[pair.Old]

	if pair.Unchanged {
		a.result.ActiveStatements = append(a.result.ActiveStatements,
			activestmt.Unchanged(a.doc.Old, pair.Old, pair.New, stmts)...)
		a.addLineShift(pair.Old.Span, pair.New.Span)

		return nil
	}

	script, err := a.cache.Script(pair.Old, pair.New)
	if err != nil {
		return err
	}

	err = script.Match.Validate()
	if err != nil {
		return fmt.Errorf("body match of %s: %w", pair.New, err)
	}

	activeOld, err := a.locate(pair.Old, stmts)
	if err != nil {
		return err
	}

	memberBag := rudeedit.NewBag(0)
	oldShape := statemachine.Describe(pair.Old)
	newShape := statemachine.Describe(pair.New)
	isStateMachine := oldShape.Kind != statemachine.None || newShape.Kind != statemachine.None

	rudeedit.ClassifyBody(rudeedit.BodyInput{
		Document:     a.doc.Path,
		Script:       script,
		Table:        a.engine.rules,
		Capabilities: a.req.capabilities(),
		ActiveOld:    activeOld,
		StateMachine: isStateMachine,
	}, memberBag)

	remapped, err := activestmt.Track(activestmt.Input{
		Document:      a.doc.Path,
		Script:        script,
		Statements:    stmts,
		StrictNonLeaf: a.engine.opts.StrictNonLeaf,
	}, memberBag)
	if err != nil {
		return err
	}

	a.result.ActiveStatements = append(a.result.ActiveStatements, remapped...)

	var syntaxMap *statemachine.SyntaxMap

	if isStateMachine || len(stmts) > 0 {
		syntaxMap = statemachine.Map(statemachine.Input{
			Document:     a.doc.Path,
			Script:       script,
			Old:          oldShape,
			New:          newShape,
			Capabilities: a.req.capabilities(),
			ActiveOld:    activeOld,
		}, memberBag)
	}

	if !memberBag.HasBlocking() && !a.declarationBlocked(pair.New) {
		oldComp, newComp := a.compilations()

		rudeedit.ClassifySemantics(rudeedit.SemanticInput{
			Document: a.doc.Path,
			Script:   script,
			Old:      oldComp,
			New:      newComp,
		}, memberBag)
	}

	a.verdicts[pair.New] = semedit.Verdict{
		Blocked:        memberBag.HasBlocking(),
		SyntaxMap:      syntaxMap,
		PreserveLocals: len(stmts) > 0,
	}

	a.bag.Merge(memberBag)
	a.addStatementShifts(script)

	return nil
}

// compilations returns the document compilations, falling back to the
// request ones.
func (a *analysis) compilations() (symbols.Compilation, symbols.Compilation) {
	oldComp, newComp := a.req.OldCompilation, a.req.NewCompilation

	if a.doc.OldCompilation != nil {
		oldComp = a.doc.OldCompilation
	}

	if a.doc.NewCompilation != nil {
		newComp = a.doc.NewCompilation
	}

	return oldComp, newComp
}

// declarationBlocked reports whether the declaration tier already blocked member.
func (a *analysis) declarationBlocked(member *syntax.Node) bool {
	return slices.ContainsFunc(a.bag.Items(), func(diag rudeedit.Diagnostic) bool {
		return diag.Severity == rudeedit.Blocking && member.Span.Contains(diag.Span)
	})
}

func (a *analysis) locate(member *syntax.Node, stmts []activestmt.Statement) ([]*syntax.Node, error) {
	nodes := make([]*syntax.Node, 0, len(stmts))

	for _, stmt := range stmts {
		node := activestmt.Locate(a.doc.Old, member, stmt.Span)
		if node == nil {
			return nil, fmt.Errorf("%w: statement %d at %s", activestmt.ErrOutsideMember, stmt.Ordinal, stmt.Span)
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

// orphanDeletedMembers reports active statements inside deleted declarations.
// They are anchored at the new counterpart of the deleted declaration's container.
func (a *analysis) orphanDeletedMembers() {
	match := a.decls.Match

	for _, deleted := range a.decls.Deleted {
		fallback := a.doc.New.Root().Span
		if container, ok := match.NewOf(match.OldParent(deleted)); ok {
			fallback = container.Span
		}

		deleted.VisitPreOrder(func(n *syntax.Node) {
			stmts := a.byMember[n]
			if len(stmts) == 0 {
				return
			}

			a.result.ActiveStatements = append(a.result.ActiveStatements, activestmt.Orphaned(activestmt.Input{
				Document:      a.doc.Path,
				Statements:    stmts,
				StrictNonLeaf: a.engine.opts.StrictNonLeaf,
			}, memberName(n), fallback, a.bag)...)
		})
	}
}

func memberName(n *syntax.Node) string {
	if n.Name != "" {
		return n.Name
	}

	return n.Kind.String()
}

func (a *analysis) addLineShift(oldSpan, newSpan syntax.Span) {
	delta := oldSpan.LineDelta(newSpan)
	if delta == 0 {
		return
	}

	a.result.LineShifts = append(a.result.LineShifts, LineShift{OldSpan: oldSpan, NewSpan: newSpan, Delta: delta})
}

// addStatementShifts records the top statements of a changed member body that
// are structurally identical and only moved by lines.
func (a *analysis) addStatementShifts(script *treematch.Script) {
	match := script.Match

	for _, pair := range match.Pairs() {
		if !pair.New.Kind.IsStatement() || pair.New.Kind == syntax.KindBlock {
			continue
		}

		parent := match.NewParent(pair.New)
		if parent == nil || parent.Kind != syntax.KindBlock || match.NewParent(parent) != match.NewRoot() {
			continue
		}

		if a.doc.Old.Fingerprint(pair.Old) != a.doc.New.Fingerprint(pair.New) || script.IsMoved(pair.New) {
			continue
		}

		a.addLineShift(pair.Old.Span, pair.New.Span)
	}
}

func (a *analysis) finish() {
	a.bag.Sort()
	a.bag.Dedup()

	a.markDeclarationBlocks()

	edits := semedit.Build(semedit.Input{Declarations: a.decls, Verdicts: a.verdicts})

	a.result.Diagnostics = a.bag.Items()
	a.result.Dropped = a.bag.Dropped()
	a.result.BodyScripts = a.cache.Computed()

	sortRemapped(a.result.ActiveStatements)
	slices.SortStableFunc(a.result.LineShifts, func(left, right LineShift) int {
		return left.OldSpan.Compare(right.OldSpan)
	})

	if a.bag.HasBlocking() {
		a.result.State = Blocked

		return
	}

	a.result.Edits = edits
	a.result.State = EditsReady
}

// markDeclarationBlocks blocks members whose declaration-level diagnostics are
// Blocking, such as signature changes.
func (a *analysis) markDeclarationBlocks() {
	for _, diag := range a.bag.Items() {
		if diag.Severity != rudeedit.Blocking {
			continue
		}

		for _, pair := range a.decls.Pairs {
			if pair.IsMember() && pair.New.Span.Contains(diag.Span) {
				verdict := a.verdicts[pair.New]
				verdict.Blocked = true
				a.verdicts[pair.New] = verdict
			}
		}
	}
}

func sortRemapped(remapped []activestmt.Remapped) {
	slices.SortStableFunc(remapped, func(left, right activestmt.Remapped) int {
		return cmp.Compare(left.Ordinal, right.Ordinal)
	})
}
