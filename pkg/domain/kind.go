package domain

// Kind is the discriminant of a node. The set is closed.
type Kind string

const (
	KindStart          Kind = "start"
	KindPlayAudio      Kind = "play_audio"
	KindMenu           Kind = "menu"
	KindSurveyQuestion Kind = "survey_question"
	KindRecord         Kind = "record"
	KindTransfer       Kind = "transfer"
	KindConditional    Kind = "conditional"
	KindSetVariable    Kind = "set_variable"
	KindHangup         Kind = "hangup"
	KindOptOut         Kind = "opt_out"
)

// Kinds returns every node kind in palette order.
func Kinds() []Kind {
	return []Kind{
		KindStart,
		KindPlayAudio,
		KindMenu,
		KindSurveyQuestion,
		KindRecord,
		KindTransfer,
		KindConditional,
		KindSetVariable,
		KindHangup,
		KindOptOut,
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Operator is the comparison applied by a conditional node.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGreater   Operator = "greater"
	OpLess      Operator = "less"
	OpContains  Operator = "contains"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreater, OpLess, OpContains:
		return true
	}
	return false
}

// TransferType selects how a transfer node hands the call over.
type TransferType string

const (
	TransferBlind    TransferType = "blind"
	TransferAttended TransferType = "attended"
)

// ValueSource tells a set_variable node where its value comes from.
type ValueSource string

const (
	SourceStatic   ValueSource = "static"   // literal Value
	SourceInput    ValueSource = "input"    // last DTMF input
	SourceVariable ValueSource = "variable" // copy of the variable named in Value
)
