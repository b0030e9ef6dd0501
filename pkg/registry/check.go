package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ivrflow/pkg/domain"
)

// CheckData returns the shape problems of a node's data, in a stable order.
// Referenced entities (audio files, destinations) are opaque and not resolved here.
func CheckData(data domain.NodeData) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(data.NodeLabel()) == "" {
		add("label is required")
	}

	switch d := data.(type) {
	case *domain.StartData, *domain.PlayAudioData, *domain.HangupData, *domain.OptOutData:
	case *domain.MenuData:
		keys := make([]string, 0, len(d.Options))
		for k := range d.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !domain.IsDTMF(k) {
				add("menu option %q is not a keypad digit", k)
			}
		}
		if d.Timeout < 0 {
			add("timeout must not be negative")
		}
		if d.MaxRetries < 0 {
			add("max_retries must not be negative")
		}
	case *domain.SurveyQuestionData:
		for _, in := range d.ValidInputs {
			if !domain.IsDTMF(in) {
				add("valid input %q is not a keypad digit", in)
			}
		}
		if d.Timeout < 0 {
			add("timeout must not be negative")
		}
	case *domain.RecordData:
		if d.MaxDuration <= 0 {
			add("max_duration must be positive")
		}
		if d.FinishOnKey != "" && !domain.IsDTMF(d.FinishOnKey) {
			add("finish_on_key %q is not a keypad digit", d.FinishOnKey)
		}
		if d.SilenceTimeout < 0 {
			add("silence_timeout must not be negative")
		}
	case *domain.TransferData:
		if strings.TrimSpace(d.Destination) == "" {
			add("destination is required")
		}
		if d.TransferType != domain.TransferBlind && d.TransferType != domain.TransferAttended {
			add("transfer_type %q is not supported", d.TransferType)
		}
		if d.Timeout < 0 {
			add("timeout must not be negative")
		}
	case *domain.ConditionalData:
		if strings.TrimSpace(d.Variable) == "" {
			add("variable is required")
		}
		if !d.Operator.Valid() {
			add("operator %q is not supported", d.Operator)
		}
	case *domain.SetVariableData:
		if strings.TrimSpace(d.Variable) == "" {
			add("variable is required")
		}
		switch d.ValueSource {
		case domain.SourceStatic, domain.SourceInput, domain.SourceVariable:
		default:
			add("value_source %q is not supported", d.ValueSource)
		}
	default:
		panic(fmt.Sprintf("registry: unhandled node data %T", data))
	}
	return problems
}
