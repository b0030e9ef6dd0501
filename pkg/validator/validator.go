// Package validator checks a flow definition against its structural invariants.
//
// Validate is a pure function of the snapshot: the same definition always yields
// the same violations in the same order, so it can run on every edit for live
// feedback and once more, authoritatively, before a save.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
	"github.com/aretw0/ivrflow/pkg/registry"
)

// Violation codes.
const (
	CodeDuplicateNodeID      = "duplicate_node_id"
	CodeDanglingEdge         = "dangling_edge"
	CodeSelfLoop             = "self_loop"
	CodeMissingStart         = "missing_start"
	CodeMultipleStart        = "multiple_start"
	CodeStartPointerMismatch = "start_pointer_mismatch"
	CodeStartHasIncoming     = "start_has_incoming"
	CodeUnreachable          = "unreachable"
	CodeStrayHandle          = "stray_handle"
	CodeDuplicateHandle      = "duplicate_handle"
	CodeMissingBranch        = "missing_branch"
	CodeBranchUnconnected    = "branch_unconnected"
	CodeTerminalHasEdges     = "terminal_has_edges"
	CodeInvalidNodeData      = "invalid_node_data"
)

type checker struct {
	def   domain.FlowDefinition
	nodes map[string]domain.Node
	out   []domain.Violation
}

func (c *checker) report(v domain.Violation) {
	c.out = append(c.out, v)
}

// Validate returns every violation found in def.
func Validate(def domain.FlowDefinition) domain.ValidationResult {
	c := &checker{def: def, nodes: make(map[string]domain.Node, len(def.Nodes))}

	c.checkReferences()
	starts := c.checkStart()
	c.checkOutputs()
	c.checkData()
	if len(starts) == 1 {
		c.checkReachability(starts[0])
	}

	return domain.ValidationResult{Violations: c.out}
}

// checkReferences verifies unique node ids and that edges point at known nodes.
func (c *checker) checkReferences() {
	for _, n := range c.def.Nodes {
		if _, dup := c.nodes[n.ID]; dup {
			c.report(domain.Violation{
				Rule: domain.RuleReferential, Code: CodeDuplicateNodeID, Severity: domain.SeverityError,
				NodeIDs: []string{n.ID},
				Message: fmt.Sprintf("node id %q is used more than once", n.ID),
			})
			continue
		}
		c.nodes[n.ID] = n
	}

	for _, e := range c.def.Edges {
		var missing []string
		if _, ok := c.nodes[e.Source]; !ok {
			missing = append(missing, e.Source)
		}
		if _, ok := c.nodes[e.Target]; !ok && e.Target != e.Source {
			missing = append(missing, e.Target)
		}
		if len(missing) > 0 {
			c.report(domain.Violation{
				Rule: domain.RuleReferential, Code: CodeDanglingEdge, Severity: domain.SeverityError,
				EdgeIDs: []string{e.ID()},
				Message: fmt.Sprintf("edge references missing node(s) %s", strings.Join(missing, ", ")),
			})
			continue
		}
		if e.Source == e.Target {
			c.report(domain.Violation{
				Rule: domain.RuleCardinality, Code: CodeSelfLoop, Severity: domain.SeverityError,
				NodeIDs: []string{e.Source}, EdgeIDs: []string{e.ID()}, Handle: e.SourceHandle,
				Message: fmt.Sprintf("node %s is connected to itself", e.Source),
			})
		}
	}
}

// checkStart enforces a single start node with no incoming edges. It returns the start ids.
func (c *checker) checkStart() []string {
	var starts []string
	for _, n := range c.def.Nodes {
		if n.Kind == domain.KindStart {
			starts = append(starts, n.ID)
		}
	}

	switch {
	case len(starts) == 0:
		c.report(domain.Violation{
			Rule: domain.RuleSingleStart, Code: CodeMissingStart, Severity: domain.SeverityError,
			Message: "flow has no start node",
		})
	case len(starts) > 1:
		c.report(domain.Violation{
			Rule: domain.RuleSingleStart, Code: CodeMultipleStart, Severity: domain.SeverityError,
			NodeIDs: starts,
			Message: fmt.Sprintf("flow has %d start nodes", len(starts)),
		})
	case c.def.StartNode != "" && c.def.StartNode != starts[0]:
		c.report(domain.Violation{
			Rule: domain.RuleSingleStart, Code: CodeStartPointerMismatch, Severity: domain.SeverityError,
			NodeIDs: []string{starts[0]},
			Message: fmt.Sprintf("startNode %q does not name the start node %q", c.def.StartNode, starts[0]),
		})
	}

	for _, e := range c.def.Edges {
		if n, ok := c.nodes[e.Target]; ok && n.Kind == domain.KindStart {
			c.report(domain.Violation{
				Rule: domain.RuleStartNoIncoming, Code: CodeStartHasIncoming, Severity: domain.SeverityError,
				NodeIDs: []string{e.Target}, EdgeIDs: []string{e.ID()},
				Message: fmt.Sprintf("start node %s has an incoming edge from %s", e.Target, e.Source),
			})
		}
	}
	return starts
}

// checkOutputs matches each node's outgoing edges against the handles its kind declares.
func (c *checker) checkOutputs() {
	for _, n := range c.def.Nodes {
		if n.Data == nil || n.Data.Kind() != n.Kind || !n.Kind.Valid() {
			continue // reported by checkData
		}
		byHandle := map[string][]domain.Edge{}
		var handles []string
		for _, e := range c.def.Edges {
			if e.Source != n.ID {
				continue
			}
			if _, seen := byHandle[e.SourceHandle]; !seen {
				handles = append(handles, e.SourceHandle)
			}
			byHandle[e.SourceHandle] = append(byHandle[e.SourceHandle], e)
		}

		if registry.IsTerminal(n.Data) {
			if len(byHandle) > 0 {
				c.report(domain.Violation{
					Rule: domain.RuleTerminal, Code: CodeTerminalHasEdges, Severity: domain.SeverityError,
					NodeIDs: []string{n.ID}, EdgeIDs: edgeIDs(handles, byHandle),
					Message: fmt.Sprintf("%s node %s ends the call but has outgoing edges", n.Kind, n.ID),
				})
			}
			continue
		}

		for _, h := range handles {
			edges := byHandle[h]
			if !registry.HasHandle(n.Data, h) {
				c.report(domain.Violation{
					Rule: domain.RuleCardinality, Code: CodeStrayHandle, Severity: domain.SeverityError,
					NodeIDs: []string{n.ID}, EdgeIDs: edgeIDs([]string{h}, byHandle), Handle: h,
					Message: fmt.Sprintf("%s node %s has no output %q", n.Kind, n.ID, h),
				})
				continue
			}
			if len(edges) > 1 {
				c.report(domain.Violation{
					Rule: domain.RuleCardinality, Code: CodeDuplicateHandle, Severity: domain.SeverityError,
					NodeIDs: []string{n.ID}, EdgeIDs: edgeIDs([]string{h}, byHandle), Handle: h,
					Message: fmt.Sprintf("output %q of %s has %d edges", h, n.ID, len(edges)),
				})
			}
		}

		for _, h := range registry.RequiredHandles(n.Data) {
			if _, ok := byHandle[h]; !ok {
				c.report(domain.Violation{
					Rule: domain.RuleCardinality, Code: CodeMissingBranch, Severity: domain.SeverityError,
					NodeIDs: []string{n.ID}, Handle: h,
					Message: fmt.Sprintf("%s node %s needs an edge on %s", n.Kind, n.ID, handleName(h)),
				})
			}
		}

		if menu, ok := n.Data.(*domain.MenuData); ok {
			keys := make([]string, 0, len(menu.Options))
			for k := range menu.Options {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if _, ok := byHandle[k]; !ok {
					c.report(domain.Violation{
						Rule: domain.RuleCardinality, Code: CodeBranchUnconnected, Severity: domain.SeverityWarning,
						NodeIDs: []string{n.ID}, Handle: k,
						Message: fmt.Sprintf("menu option %q of %s is not connected", k, n.ID),
					})
				}
			}
		}
	}
}

// checkData reports kind/data mismatches and per-kind field problems.
func (c *checker) checkData() {
	for _, n := range c.def.Nodes {
		var problems []string
		switch {
		case !n.Kind.Valid():
			problems = []string{fmt.Sprintf("unknown node type %q", n.Kind)}
		case n.Data == nil:
			problems = []string{"node has no data"}
		case n.Data.Kind() != n.Kind:
			problems = []string{fmt.Sprintf("data is %s but node type is %s", n.Data.Kind(), n.Kind)}
		default:
			problems = registry.CheckData(n.Data)
		}
		for _, p := range problems {
			c.report(domain.Violation{
				Rule: domain.RuleNodeData, Code: CodeInvalidNodeData, Severity: domain.SeverityError,
				NodeIDs: []string{n.ID},
				Message: fmt.Sprintf("%s: %s", n.ID, p),
			})
		}
	}
}

// checkReachability walks edges breadth-first from start and warns about every node it misses.
func (c *checker) checkReachability(start string) {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range c.def.Edges {
			if e.Source != current || visited[e.Target] {
				continue
			}
			if _, ok := c.nodes[e.Target]; !ok {
				continue
			}
			visited[e.Target] = true
			queue = append(queue, e.Target)
		}
	}

	for _, n := range c.def.Nodes {
		if !visited[n.ID] {
			c.report(domain.Violation{
				Rule: domain.RuleReachability, Code: CodeUnreachable, Severity: domain.SeverityWarning,
				NodeIDs: []string{n.ID},
				Message: fmt.Sprintf("node %s cannot be reached from start", n.ID),
			})
		}
	}
}

func edgeIDs(handles []string, byHandle map[string][]domain.Edge) []string {
	var out []string
	for _, h := range handles {
		for _, e := range byHandle[h] {
			out = append(out, e.ID())
		}
	}
	return out
}

func handleName(h string) string {
	if h == domain.HandleDefault {
		return "its output"
	}
	return fmt.Sprintf("%q", h)
}
