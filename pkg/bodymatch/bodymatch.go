// Package bodymatch computes the statement and expression level edit script of
// one paired member declaration.
package bodymatch

import (
	"fmt"

	"github.com/Sumatoshi-tech/liveedit/pkg/syntax"
	"github.com/Sumatoshi-tech/liveedit/pkg/treematch"
)

// Comparer labels every non-trivia node by kind, adding the declared name of
// identity-bearing nodes such as locals, parameters and labels.
type Comparer struct{}

// Label implements treematch.Comparer.
func (Comparer) Label(n *syntax.Node) (treematch.Label, bool) {
	if n.Kind.IsTrivia() {
		return treematch.Label{}, false
	}

	return treematch.Label{Kind: n.Kind, Name: n.Name, Arity: n.Arity}, true
}

// Descend implements treematch.Comparer.
func (Comparer) Descend(*syntax.Node) bool {
	return true
}

// Match computes the edit script between two member subtrees.
func Match(
	oldTree *syntax.Tree, oldMember *syntax.Node,
	newTree *syntax.Tree, newMember *syntax.Node,
	opts ...treematch.Option,
) (*treematch.Script, error) {
	match, err := treematch.Compute(oldTree, oldMember, newTree, newMember, Comparer{}, opts...)
	if err != nil {
		return nil, fmt.Errorf("body match %s: %w", newMember, err)
	}

	return match.EditScript(), nil
}

type memberKey struct {
	old *syntax.Node
	new *syntax.Node
}

// Cache memoizes body scripts per member pair so every consumer of one member
// observes the same correspondence. A Cache belongs to one document analysis
// and is not safe for concurrent use.
type Cache struct {
	oldTree *syntax.Tree
	newTree *syntax.Tree
	opts    []treematch.Option
	scripts map[memberKey]*treematch.Script
	misses  int
}

// NewCache creates a cache over the two trees of one document.
func NewCache(oldTree, newTree *syntax.Tree, opts ...treematch.Option) *Cache {
	return &Cache{
		oldTree: oldTree,
		newTree: newTree,
		opts:    opts,
		scripts: make(map[memberKey]*treematch.Script),
	}
}

// Script returns the body script of a member pair, computing it on first use.
func (c *Cache) Script(oldMember, newMember *syntax.Node) (*treematch.Script, error) {
	key := memberKey{old: oldMember, new: newMember}

	if script, ok := c.scripts[key]; ok {
		return script, nil
	}

	script, err := Match(c.oldTree, oldMember, c.newTree, newMember, c.opts...)
	if err != nil {
		return nil, err
	}

	c.misses++
	c.scripts[key] = script

	return script, nil
}

// Computed returns the number of scripts computed so far.
func (c *Cache) Computed() int {
	return c.misses
}
