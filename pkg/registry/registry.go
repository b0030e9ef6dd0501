// Package registry is the closed table of node variants: their default data,
// their output handles and their display metadata.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// Variant describes one node kind.
type Variant struct {
	Kind        domain.Kind `json:"kind"`
	DisplayName string      `json:"displayName"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	// StyleKey is a deterministic icon/style identifier, used only for display.
	StyleKey string `json:"styleKey"`

	defaults func() domain.NodeData
}

var variants = map[domain.Kind]Variant{
	domain.KindStart: {
		Category: "flow", StyleKey: "play-circle",
		Description: "Entry point of the call",
		defaults:    func() domain.NodeData { return &domain.StartData{} },
	},
	domain.KindPlayAudio: {
		Category: "audio", StyleKey: "volume-2",
		Description: "Play an audio file",
		defaults:    func() domain.NodeData { return &domain.PlayAudioData{} },
	},
	domain.KindMenu: {
		Category: "input", StyleKey: "list",
		Description: "Branch on a keypad digit",
		defaults: func() domain.NodeData {
			return &domain.MenuData{Timeout: 5, MaxRetries: 3, Options: map[string]string{}}
		},
	},
	domain.KindSurveyQuestion: {
		Category: "input", StyleKey: "help-circle",
		Description: "Ask a survey question",
		defaults: func() domain.NodeData {
			return &domain.SurveyQuestionData{Timeout: 10, ValidInputs: []string{}}
		},
	},
	domain.KindRecord: {
		Category: "audio", StyleKey: "mic",
		Description: "Record the caller",
		defaults: func() domain.NodeData {
			return &domain.RecordData{MaxDuration: 60, Beep: true, FinishOnKey: "#", SilenceTimeout: 5}
		},
	},
	domain.KindTransfer: {
		Category: "call", StyleKey: "phone-forwarded",
		Description: "Transfer the call",
		defaults: func() domain.NodeData {
			return &domain.TransferData{Timeout: 30, TransferType: domain.TransferBlind}
		},
	},
	domain.KindConditional: {
		Category: "logic", StyleKey: "git-branch",
		Description: "Branch on a variable",
		defaults: func() domain.NodeData {
			return &domain.ConditionalData{Operator: domain.OpEquals}
		},
	},
	domain.KindSetVariable: {
		Category: "logic", StyleKey: "variable",
		Description: "Assign a call variable",
		defaults: func() domain.NodeData {
			return &domain.SetVariableData{ValueSource: domain.SourceStatic}
		},
	},
	domain.KindHangup: {
		Category: "call", StyleKey: "phone-off",
		Description: "End the call",
		defaults:    func() domain.NodeData { return &domain.HangupData{} },
	},
	domain.KindOptOut: {
		Category: "call", StyleKey: "user-x",
		Description: "Opt the caller out",
		defaults:    func() domain.NodeData { return &domain.OptOutData{HangupAfter: true} },
	},
}

func init() {
	for kind, v := range variants {
		v.Kind = kind
		v.DisplayName = Humanize(kind)
		variants[kind] = v
	}
}

// Lookup returns the variant for kind. It panics on an unknown kind:
// callers are expected to check domain.Kind.Valid at their boundary.
func Lookup(kind domain.Kind) Variant {
	v, ok := variants[kind]
	if !ok {
		panic(fmt.Sprintf("registry: unknown node kind %q", kind))
	}
	return v
}

// Variants returns every variant in palette order.
func Variants() []Variant {
	out := make([]Variant, 0, len(variants))
	for _, kind := range domain.Kinds() {
		out = append(out, Lookup(kind))
	}
	return out
}

// Defaults returns fresh default data for kind, labelled with the humanized kind.
func Defaults(kind domain.Kind) domain.NodeData {
	data := Lookup(kind).defaults()
	setLabel(data, Humanize(kind))
	return data
}

// Humanize turns "play_audio" into "Play Audio".
func Humanize(kind domain.Kind) string {
	words := strings.Split(string(kind), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Handles returns the outputs declared by a node in its current configuration,
// sorted. Menu handles follow its options; opt_out has none while it hangs up.
func Handles(data domain.NodeData) []string {
	switch d := data.(type) {
	case *domain.StartData, *domain.PlayAudioData, *domain.SurveyQuestionData,
		*domain.RecordData, *domain.TransferData, *domain.SetVariableData:
		return []string{domain.HandleDefault}
	case *domain.MenuData:
		out := make([]string, 0, len(d.Options)+1)
		for key := range d.Options {
			out = append(out, key)
		}
		sort.Strings(out)
		return append(out, domain.HandleInvalid)
	case *domain.ConditionalData:
		return []string{domain.HandleFalse, domain.HandleTrue}
	case *domain.HangupData:
		return nil
	case *domain.OptOutData:
		if d.HangupAfter {
			return nil
		}
		return []string{domain.HandleDefault}
	}
	panic(fmt.Sprintf("registry: unhandled node data %T", data))
}

// RequiredHandles returns the outputs that must carry exactly one edge.
func RequiredHandles(data domain.NodeData) []string {
	switch data.(type) {
	case *domain.StartData:
		return []string{domain.HandleDefault}
	case *domain.ConditionalData:
		return []string{domain.HandleFalse, domain.HandleTrue}
	}
	return nil
}

// HasHandle reports whether handle is declared by data.
func HasHandle(data domain.NodeData, handle string) bool {
	for _, h := range Handles(data) {
		if h == handle {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the node ends the call and may not have outputs.
func IsTerminal(data domain.NodeData) bool {
	return len(Handles(data)) == 0
}

// IsBranching reports whether the node selects among several outputs.
func IsBranching(kind domain.Kind) bool {
	return kind == domain.KindMenu || kind == domain.KindConditional
}

func setLabel(data domain.NodeData, label string) {
	switch d := data.(type) {
	case *domain.StartData:
		d.Label = label
	case *domain.PlayAudioData:
		d.Label = label
	case *domain.MenuData:
		d.Label = label
	case *domain.SurveyQuestionData:
		d.Label = label
	case *domain.RecordData:
		d.Label = label
	case *domain.TransferData:
		d.Label = label
	case *domain.ConditionalData:
		d.Label = label
	case *domain.SetVariableData:
		d.Label = label
	case *domain.HangupData:
		d.Label = label
	case *domain.OptOutData:
		d.Label = label
	default:
		panic(fmt.Sprintf("registry: unhandled node data %T", data))
	}
}
