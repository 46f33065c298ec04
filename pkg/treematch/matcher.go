package treematch

import (
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/levenshtein"
	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
)

const (
	// DefaultSimilarityThreshold is the minimum text similarity for pairing two
	// unnamed nodes of equal label that are not the sole candidates of that label.
	DefaultSimilarityThreshold = 0.5

	// minContainerDice is the share of matched descendants required to pair two
	// containers whose own positions did not line up.
	minContainerDice = 0.5

	// weightScale converts a similarity in [0,1] into an integer alignment weight.
	weightScale = 1000
)

type config struct {
	threshold   float64
	crossParent bool
}

// Option configures a match computation.
type Option func(*config)

// WithSimilarityThreshold overrides DefaultSimilarityThreshold.
func WithSimilarityThreshold(threshold float64) Option {
	return func(cfg *config) {
		if threshold > 0 && threshold <= 1 {
			cfg.threshold = threshold
		}
	}
}

// WithoutCrossParentMoves restricts pairing to children of already paired parents.
func WithoutCrossParentMoves() Option {
	return func(cfg *config) {
		cfg.crossParent = false
	}
}

// Compute matches the subtree rooted at oldRoot (in oldTree) against the subtree
// rooted at newRoot (in newTree). The two roots are always paired.
//
// Cost is O(n log n) in the common case: identical subtrees are resolved through
// fingerprint buckets, and only the k siblings left unresolved under one parent
// go through the O(k²) weighted alignment. Fully ambiguous inputs (every sibling
// edited, none identical) degrade to the quadratic alignment.
func Compute(
	oldTree *syntax.Tree, oldRoot *syntax.Node,
	newTree *syntax.Tree, newRoot *syntax.Node,
	cmp Comparer, opts ...Option,
) (*Match, error) {
	cfg := config{threshold: DefaultSimilarityThreshold, crossParent: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	oldParts, err := newSide(oldTree, oldRoot, cmp)
	if err != nil {
		return nil, fmt.Errorf("old side: %w", err)
	}

	newParts, err := newSide(newTree, newRoot, cmp)
	if err != nil {
		return nil, fmt.Errorf("new side: %w", err)
	}

	if oldRoot.Kind != newRoot.Kind {
		return nil, fmt.Errorf("%w: %s vs %s", ErrRootMismatch, oldRoot.Kind, newRoot.Kind)
	}

	match := &Match{
		oldSide:  oldParts,
		newSide:  newParts,
		oldToNew: make(map[*syntax.Node]*syntax.Node, len(oldParts.nodes)),
		newToOld: make(map[*syntax.Node]*syntax.Node, len(newParts.nodes)),
	}

	mt := &matcher{match: match, old: oldParts, new: newParts, cfg: cfg}

	if oldTree.Fingerprint(oldRoot) == newTree.Fingerprint(newRoot) {
		mt.pairIsomorphic(oldRoot, newRoot)
	} else {
		match.add(oldRoot, newRoot)
		mt.matchChildren(oldRoot, newRoot)
	}

	if cfg.crossParent {
		mt.matchLeftovers()
	}

	mt.recoverContainers()

	validateErr := match.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return match, nil
}

type matcher struct {
	match *Match
	old   *side
	new   *side
	cfg   config
	lev   levenshtein.Context
}

type exactKey struct {
	label       Label
	fingerprint uint64
}

func (mt *matcher) oldKey(n *syntax.Node) exactKey {
	return exactKey{label: mt.old.labels[n], fingerprint: mt.old.tree.Fingerprint(n)}
}

func (mt *matcher) newKey(n *syntax.Node) exactKey {
	return exactKey{label: mt.new.labels[n], fingerprint: mt.new.tree.Fingerprint(n)}
}

// pairIsomorphic pairs two nodes with equal fingerprints and walks their
// children in lockstep. Any disagreement falls back to regular child matching.
func (mt *matcher) pairIsomorphic(oldNode, newNode *syntax.Node) {
	mt.match.add(oldNode, newNode)

	oldKids := mt.old.children[oldNode]
	newKids := mt.new.children[newNode]

	if !mt.lockstep(oldKids, newKids) {
		mt.matchChildren(oldNode, newNode)

		return
	}

	for idx := range oldKids {
		mt.pairIsomorphic(oldKids[idx], newKids[idx])
	}
}

func (mt *matcher) lockstep(oldKids, newKids []*syntax.Node) bool {
	if len(oldKids) != len(newKids) {
		return false
	}

	for idx := range oldKids {
		if mt.oldKey(oldKids[idx]) != mt.newKey(newKids[idx]) {
			return false
		}

		if mt.match.oldMatched(oldKids[idx]) || mt.match.newMatched(newKids[idx]) {
			return false
		}
	}

	return true
}

// matchChildren pairs the unmatched children of a matched parent pair: first
// identical subtrees through fingerprint buckets, then the rest through a
// weighted order-preserving alignment, recursing into pairs that differ.
func (mt *matcher) matchChildren(oldParent, newParent *syntax.Node) {
	oldKids := mt.unmatchedOld(mt.old.children[oldParent])
	newKids := mt.unmatchedNew(mt.new.children[newParent])

	if len(oldKids) == 0 || len(newKids) == 0 {
		return
	}

	oldKids, newKids = mt.matchExact(oldKids, newKids)

	for _, pair := range mt.align(oldKids, newKids) {
		mt.match.add(pair.Old, pair.New)
		mt.matchChildren(pair.Old, pair.New)
	}
}

func (mt *matcher) unmatchedOld(nodes []*syntax.Node) []*syntax.Node {
	rest := make([]*syntax.Node, 0, len(nodes))

	for _, n := range nodes {
		if !mt.match.oldMatched(n) {
			rest = append(rest, n)
		}
	}

	return rest
}

func (mt *matcher) unmatchedNew(nodes []*syntax.Node) []*syntax.Node {
	rest := make([]*syntax.Node, 0, len(nodes))

	for _, n := range nodes {
		if !mt.match.newMatched(n) {
			rest = append(rest, n)
		}
	}

	return rest
}

// matchExact pairs the k-th old occurrence of a (label, fingerprint) bucket with
// the k-th new occurrence and returns the children left unmatched on both sides.
func (mt *matcher) matchExact(oldKids, newKids []*syntax.Node) (restOld, restNew []*syntax.Node) {
	buckets := make(map[exactKey][]*syntax.Node, len(oldKids))

	for _, oldKid := range oldKids {
		key := mt.oldKey(oldKid)
		buckets[key] = append(buckets[key], oldKid)
	}

	for _, newKid := range newKids {
		key := mt.newKey(newKid)

		queue := buckets[key]
		if len(queue) == 0 {
			restNew = append(restNew, newKid)

			continue
		}

		buckets[key] = queue[1:]
		mt.pairIsomorphic(queue[0], newKid)
	}

	return mt.unmatchedOld(oldKids), restNew
}

// align runs a weighted longest-common-subsequence over two sibling lists. Only
// equally labeled nodes are compatible; the weight grows with their similarity.
func (mt *matcher) align(oldKids, newKids []*syntax.Node) []Pair {
	rows, cols := len(oldKids), len(newKids)
	if rows == 0 || cols == 0 {
		return nil
	}

	oldCount := make(map[Label]int, rows)
	for _, oldKid := range oldKids {
		oldCount[mt.old.labels[oldKid]]++
	}

	newCount := make(map[Label]int, cols)
	for _, newKid := range newKids {
		newCount[mt.new.labels[newKid]]++
	}

	weights := make([][]int, rows)

	for row, oldKid := range oldKids {
		weights[row] = make([]int, cols)
		label := mt.old.labels[oldKid]

		for col, newKid := range newKids {
			if mt.new.labels[newKid] != label {
				continue
			}

			sole := oldCount[label] == 1 && newCount[label] == 1
			weights[row][col] = mt.weight(oldKid, newKid, label, sole)
		}
	}

	table := make([][]int, rows+1)
	for row := range table {
		table[row] = make([]int, cols+1)
	}

	for row := 1; row <= rows; row++ {
		for col := 1; col <= cols; col++ {
			best := max(table[row-1][col], table[row][col-1])

			if w := weights[row-1][col-1]; w > 0 && table[row-1][col-1]+w > best {
				best = table[row-1][col-1] + w
			}

			table[row][col] = best
		}
	}

	var pairs []Pair

	row, col := rows, cols

	for row > 0 && col > 0 {
		w := weights[row-1][col-1]

		switch {
		case w > 0 && table[row][col] == table[row-1][col-1]+w:
			pairs = append(pairs, Pair{Old: oldKids[row-1], New: newKids[col-1]})
			row--
			col--
		case table[row][col] == table[row-1][col]:
			row--
		default:
			col--
		}
	}

	for left, right := 0, len(pairs)-1; left < right; left, right = left+1, right-1 {
		pairs[left], pairs[right] = pairs[right], pairs[left]
	}

	return pairs
}

func (mt *matcher) weight(oldNode, newNode *syntax.Node, label Label, sole bool) int {
	similarity := mt.similarity(oldNode, newNode)

	if similarity < mt.cfg.threshold && label.Name == "" && !sole {
		return 0
	}

	return 1 + int(similarity*weightScale)
}

// similarity blends the similarity of the nodes' own text with the overlap of
// their descendant fingerprints.
func (mt *matcher) similarity(oldNode, newNode *syntax.Node) float64 {
	local := mt.textSimilarity(syntax.NormalizeToken(oldNode.Token), syntax.NormalizeToken(newNode.Token))

	oldDigests := mt.old.descendantFingerprints(oldNode)
	newDigests := mt.new.descendantFingerprints(newNode)

	if len(oldDigests) == 0 && len(newDigests) == 0 {
		return local
	}

	const halves = 2

	return (local + diceCoefficient(oldDigests, newDigests)) / halves
}

// matchLeftovers pairs identical subtrees that changed parents: unmatched old
// and new statements, declarations and lambdas are bucketed by (label,
// fingerprint) across the whole subtree and paired in document order.
func (mt *matcher) matchLeftovers() {
	buckets := make(map[exactKey][]*syntax.Node)

	for _, oldNode := range mt.old.nodes {
		if oldNode == mt.old.root || mt.match.oldMatched(oldNode) || !movable(oldNode.Kind) {
			continue
		}

		key := mt.oldKey(oldNode)
		buckets[key] = append(buckets[key], oldNode)
	}

	if len(buckets) == 0 {
		return
	}

	for _, newNode := range mt.new.nodes {
		if newNode == mt.new.root || mt.match.newMatched(newNode) || !movable(newNode.Kind) {
			continue
		}

		key := mt.newKey(newNode)
		queue := buckets[key]

		for len(queue) > 0 && mt.match.oldMatched(queue[0]) {
			queue = queue[1:]
		}

		if len(queue) == 0 {
			buckets[key] = queue

			continue
		}

		buckets[key] = queue[1:]
		mt.pairIsomorphic(queue[0], newNode)
	}
}

func movable(kind syntax.Kind) bool {
	return kind.IsStatement() || kind.IsDeclaration() || kind == syntax.KindLambda
}

// recoverContainers pairs unmatched new containers with the unmatched old
// container of equal label that holds most counterparts of their matched
// descendants, then refines the children of each recovered pair.
func (mt *matcher) recoverContainers() {
	for idx := len(mt.new.nodes) - 1; idx >= 0; idx-- {
		newNode := mt.new.nodes[idx]

		if newNode == mt.new.root || mt.match.newMatched(newNode) || len(mt.new.children[newNode]) == 0 {
			continue
		}

		oldNode := mt.bestContainer(newNode)
		if oldNode == nil {
			continue
		}

		mt.match.add(oldNode, newNode)
		mt.matchChildren(oldNode, newNode)
	}
}

func (mt *matcher) bestContainer(newNode *syntax.Node) *syntax.Node {
	label := mt.new.labels[newNode]
	newDescendants := mt.new.descendants(newNode)
	votes := make(map[*syntax.Node]int)

	for _, descendant := range newDescendants {
		counterpart, ok := mt.match.OldOf(descendant)
		if !ok {
			continue
		}

		for ancestor := mt.old.parent[counterpart]; ancestor != nil; ancestor = mt.old.parent[ancestor] {
			if mt.match.oldMatched(ancestor) || mt.old.labels[ancestor] != label {
				continue
			}

			votes[ancestor]++
		}
	}

	var (
		best      *syntax.Node
		bestVotes int
	)

	for candidate, count := range votes {
		switch {
		case count > bestVotes:
			best, bestVotes = candidate, count
		case count == bestVotes && mt.old.ordinal[candidate] < mt.old.ordinal[best]:
			best = candidate
		}
	}

	if best == nil {
		return nil
	}

	total := len(newDescendants) + len(mt.old.descendants(best))
	if total == 0 || 2*float64(bestVotes)/float64(total) < minContainerDice {
		return nil
	}

	return best
}
