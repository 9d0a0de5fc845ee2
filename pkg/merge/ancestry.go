package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/odvcencio/sandgit/pkg/object"
)

// DefaultMaxSteps bounds how many commits an ancestry walk may visit.
const DefaultMaxSteps = 100_000

// ErrAncestryUnknown is returned when the commit graph could not be walked
// far enough to answer an ancestry question.
var ErrAncestryUnknown = errors.New("ancestry unknown")

// Limit bounds commit-graph traversal. A zero MaxSteps means DefaultMaxSteps.
type Limit struct {
	MaxSteps int
}

func (l Limit) maxSteps() int {
	if l.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return l.MaxSteps
}

// walker reads commits on behalf of one traversal and enforces its budget.
type walker struct {
	ctx     context.Context
	store   *object.Store
	max     int
	steps   int
	parents map[object.Hash][]object.Hash
}

func newWalker(ctx context.Context, store *object.Store, limit Limit) *walker {
	return &walker{ctx: ctx, store: store, max: limit.maxSteps(), parents: make(map[object.Hash][]object.Hash)}
}

func (w *walker) parentsOf(h object.Hash) ([]object.Hash, error) {
	if ps, ok := w.parents[h]; ok {
		return ps, nil
	}
	w.steps++
	if w.steps > w.max {
		return nil, fmt.Errorf("%w: traversal exceeded %d commits", ErrAncestryUnknown, w.max)
	}
	if w.steps%512 == 0 {
		if err := w.ctx.Err(); err != nil {
			return nil, err
		}
	}
	c, err := w.store.ReadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("%w: read commit %s: %w", ErrAncestryUnknown, h, err)
	}
	w.parents[h] = c.Parents
	return c.Parents, nil
}

// ancestors returns every commit reachable from start, start included.
func (w *walker) ancestors(start object.Hash) (map[object.Hash]struct{}, error) {
	seen := map[object.Hash]struct{}{start: {}}
	queue := []object.Hash{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ps, err := w.parentsOf(cur)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return seen, nil
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parent links. A commit is its own ancestor.
func IsAncestor(ctx context.Context, store *object.Store, ancestor, descendant object.Hash, limit Limit) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	if ancestor == descendant {
		return true, nil
	}
	w := newWalker(ctx, store, limit)
	seen := map[object.Hash]struct{}{descendant: {}}
	queue := []object.Hash{descendant}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		ps, err := w.parentsOf(cur)
		if err != nil {
			return false, err
		}
		for _, p := range ps {
			if p == ancestor {
				return true, nil
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			queue = append(queue, p)
		}
	}
	return false, nil
}

// FindMergeBase returns the best common ancestor of a and b: the one with
// the highest generation number, ties broken by the smaller hash. It
// returns "" when the histories are unrelated.
func FindMergeBase(ctx context.Context, store *object.Store, a, b object.Hash, limit Limit) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}
	w := newWalker(ctx, store, limit)
	fromA, err := w.ancestors(a)
	if err != nil {
		return "", err
	}
	if _, ok := fromA[b]; ok {
		return b, nil
	}
	fromB, err := w.ancestors(b)
	if err != nil {
		return "", err
	}
	if _, ok := fromB[a]; ok {
		return a, nil
	}

	gens := make(map[object.Hash]int, len(w.parents))
	var best object.Hash
	bestGen := 0
	for h := range fromA {
		if _, common := fromB[h]; !common {
			continue
		}
		g := generation(w.parents, gens, h)
		best, bestGen = chooseBetterMergeBase(best, bestGen, h, g)
	}
	return best, nil
}

// generation computes 1 + the longest parent chain below h using only
// commits the walker has already read.
func generation(parents map[object.Hash][]object.Hash, memo map[object.Hash]int, h object.Hash) int {
	if g, ok := memo[h]; ok {
		return g
	}
	type frame struct {
		hash object.Hash
		next int
		gen  int
	}
	stack := []frame{{hash: h, gen: 1}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		ps := parents[top.hash]
		if top.next < len(ps) {
			p := ps[top.next]
			top.next++
			if g, ok := memo[p]; ok {
				top.gen = max(top.gen, g+1)
				continue
			}
			stack = append(stack, frame{hash: p, gen: 1})
			continue
		}
		memo[top.hash] = top.gen
		done := top.gen
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			parent := &stack[len(stack)-1]
			parent.gen = max(parent.gen, done+1)
		}
	}
	return memo[h]
}

func chooseBetterMergeBase(best object.Hash, bestGen int, candidate object.Hash, candidateGen int) (object.Hash, int) {
	switch {
	case best == "":
		return candidate, candidateGen
	case candidateGen > bestGen:
		return candidate, candidateGen
	case candidateGen == bestGen && candidate < best:
		return candidate, candidateGen
	default:
		return best, bestGen
	}
}
