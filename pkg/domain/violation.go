package domain

// Severity decides whether a violation blocks a save.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names the structural invariant a violation breaks.
type Rule string

const (
	RuleSingleStart     Rule = "single_start"
	RuleStartNoIncoming Rule = "start_no_incoming"
	RuleReachability    Rule = "reachability"
	RuleCardinality     Rule = "cardinality"
	RuleTerminal        Rule = "terminal"
	RuleReferential     Rule = "referential_integrity"
	RuleNodeData        Rule = "node_data"
)

// Violation is a single problem found in a definition.
type Violation struct {
	Rule     Rule     `json:"rule"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	NodeIDs  []string `json:"nodeIds,omitempty"`
	EdgeIDs  []string `json:"edgeIds,omitempty"`
	Handle   string   `json:"handle,omitempty"`
	Message  string   `json:"message"`
}

// ValidationResult is the outcome of validating a definition.
// A result with no violations is Valid.
type ValidationResult struct {
	Violations []Violation `json:"violations"`
}

// Valid reports whether no violation of any severity was found.
func (r ValidationResult) Valid() bool { return len(r.Violations) == 0 }

// HasErrors reports whether at least one violation blocks saving.
func (r ValidationResult) HasErrors() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the blocking violations.
func (r ValidationResult) Errors() []Violation { return r.filter(SeverityError) }

// Warnings returns the advisory violations.
func (r ValidationResult) Warnings() []Violation { return r.filter(SeverityWarning) }

// ForNode returns the violations that mention nodeID.
func (r ValidationResult) ForNode(nodeID string) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		for _, id := range v.NodeIDs {
			if id == nodeID {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func (r ValidationResult) filter(s Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}
