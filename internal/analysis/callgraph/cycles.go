package callgraph

import (
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/gnoverse/pplint/internal/syntax"
)

// Cycles returns the groups of functions that call each other
// recursively: strongly connected components with more than one member,
// and functions that call themselves. Groups and their members are sorted
// by node id.
func Cycles(g Graph) [][]syntax.NodeID {
	c := newCycle(g)
	for _, n := range g.Callers() {
		if _, ok := c.index[n]; !ok {
			c.dfs(n)
		}
	}
	sort.Slice(c.cycles, func(i, j int) bool { return c.cycles[i][0] < c.cycles[j][0] })
	return c.cycles
}

// Recursive returns the set of functions lying on a cyclic call path.
func Recursive(g Graph) *intsets.Sparse {
	var out intsets.Sparse
	for _, group := range Cycles(g) {
		for _, n := range group {
			out.Insert(int(n))
		}
	}
	return &out
}

// UnderRecursion returns the functions with a cyclic call path leading to
// them: members of a cycle and everything they reach.
func UnderRecursion(g Graph) *intsets.Sparse {
	var out intsets.Sparse
	stack := []syntax.NodeID{}
	rec := Recursive(g)
	for _, n := range rec.AppendTo(nil) {
		stack = append(stack, syntax.NodeID(n))
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !out.Insert(int(n)) {
			continue
		}
		stack = append(stack, g[n]...)
	}
	return &out
}

// cycle is Tarjan's strongly connected components search.
type cycle struct {
	deps    Graph
	index   map[syntax.NodeID]int
	low     map[syntax.NodeID]int
	onStack map[syntax.NodeID]bool
	stack   []syntax.NodeID
	cycles  [][]syntax.NodeID
}

func newCycle(g Graph) *cycle {
	return &cycle{
		deps:    g,
		index:   make(map[syntax.NodeID]int),
		low:     make(map[syntax.NodeID]int),
		onStack: make(map[syntax.NodeID]bool),
	}
}

func (c *cycle) dfs(n syntax.NodeID) {
	c.index[n] = len(c.index)
	c.low[n] = c.index[n]
	c.stack = append(c.stack, n)
	c.onStack[n] = true

	selfCall := false
	for _, dep := range c.deps[n] {
		if dep == n {
			selfCall = true
		}
		if _, seen := c.index[dep]; !seen {
			c.dfs(dep)
			c.low[n] = min(c.low[n], c.low[dep])
		} else if c.onStack[dep] {
			c.low[n] = min(c.low[n], c.index[dep])
		}
	}

	if c.low[n] != c.index[n] {
		return
	}
	var group []syntax.NodeID
	for {
		top := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		c.onStack[top] = false
		group = append(group, top)
		if top == n {
			break
		}
	}
	if len(group) > 1 || selfCall {
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
		c.cycles = append(c.cycles, group)
	}
}
