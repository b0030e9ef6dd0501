package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Position is a point in canvas coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node represents a single step of the call script.
// Data always holds the variant matching Kind.
type Node struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	if n.Data != nil {
		out.Data = n.Data.Clone()
	}
	return out
}

// Label returns the human-readable label of the node, or "" when it has no data.
func (n Node) Label() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.NodeLabel()
}

type wireNode struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the data object into the variant named by "type".
func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := NewData(w.Kind)
	if err != nil {
		return fmt.Errorf("node %q: %w", w.ID, err)
	}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, data); err != nil {
			return fmt.Errorf("node %q: invalid %s data: %w", w.ID, w.Kind, err)
		}
	}
	*n = Node{ID: w.ID, Kind: w.Kind, Position: w.Position, Data: data}
	return nil
}

// NodeData is the per-kind configuration of a node.
// Implementations are the *XxxData types of this package; the set is closed.
type NodeData interface {
	Kind() Kind
	NodeLabel() string
	Clone() NodeData
}

// NewData returns an empty data value for kind.
func NewData(kind Kind) (NodeData, error) {
	switch kind {
	case KindStart:
		return &StartData{}, nil
	case KindPlayAudio:
		return &PlayAudioData{}, nil
	case KindMenu:
		return &MenuData{}, nil
	case KindSurveyQuestion:
		return &SurveyQuestionData{}, nil
	case KindRecord:
		return &RecordData{}, nil
	case KindTransfer:
		return &TransferData{}, nil
	case KindConditional:
		return &ConditionalData{}, nil
	case KindSetVariable:
		return &SetVariableData{}, nil
	case KindHangup:
		return &HangupData{}, nil
	case KindOptOut:
		return &OptOutData{HangupAfter: true}, nil
	}
	return nil, fmt.Errorf("unknown node type %q", kind)
}

// StartData configures the unique entry point.
type StartData struct {
	Label string `json:"label"`
}

func (d *StartData) Kind() Kind        { return KindStart }
func (d *StartData) NodeLabel() string { return d.Label }
func (d *StartData) Clone() NodeData   { c := *d; return &c }

// PlayAudioData plays a prompt, optionally listening for a keypress.
type PlayAudioData struct {
	Label         string `json:"label"`
	AudioFileID   string `json:"audio_file_id"`
	AudioFileName string `json:"audio_file_name,omitempty"`
	WaitForDTMF   bool   `json:"wait_for_dtmf"`
}

func (d *PlayAudioData) Kind() Kind        { return KindPlayAudio }
func (d *PlayAudioData) NodeLabel() string { return d.Label }
func (d *PlayAudioData) Clone() NodeData   { c := *d; return &c }

// MenuData collects one DTMF digit and branches on it.
// Options maps a digit (which is also the output handle) to its branch label.
type MenuData struct {
	Label         string            `json:"label"`
	PromptAudioID string            `json:"prompt_audio_id"`
	Timeout       int               `json:"timeout"`
	MaxRetries    int               `json:"max_retries"`
	Options       map[string]string `json:"options"`
}

func (d *MenuData) Kind() Kind        { return KindMenu }
func (d *MenuData) NodeLabel() string { return d.Label }
func (d *MenuData) Clone() NodeData {
	c := *d
	c.Options = maps.Clone(d.Options)
	return &c
}

// SurveyQuestionData records a keypad answer to a survey question.
type SurveyQuestionData struct {
	Label         string   `json:"label"`
	QuestionID    string   `json:"question_id"`
	PromptAudioID string   `json:"prompt_audio_id"`
	ValidInputs   []string `json:"valid_inputs"`
	Timeout       int      `json:"timeout"`
}

func (d *SurveyQuestionData) Kind() Kind        { return KindSurveyQuestion }
func (d *SurveyQuestionData) NodeLabel() string { return d.Label }
func (d *SurveyQuestionData) Clone() NodeData {
	c := *d
	c.ValidInputs = slices.Clone(d.ValidInputs)
	return &c
}

// RecordData captures a voice message.
type RecordData struct {
	Label          string `json:"label"`
	MaxDuration    int    `json:"max_duration"`
	Beep           bool   `json:"beep"`
	FinishOnKey    string `json:"finish_on_key"`
	SilenceTimeout int    `json:"silence_timeout"`
}

func (d *RecordData) Kind() Kind        { return KindRecord }
func (d *RecordData) NodeLabel() string { return d.Label }
func (d *RecordData) Clone() NodeData   { c := *d; return &c }

// TransferData hands the call to another destination.
type TransferData struct {
	Label        string       `json:"label"`
	Destination  string       `json:"destination"`
	Timeout      int          `json:"timeout"`
	TransferType TransferType `json:"transfer_type"`
}

func (d *TransferData) Kind() Kind        { return KindTransfer }
func (d *TransferData) NodeLabel() string { return d.Label }
func (d *TransferData) Clone() NodeData   { c := *d; return &c }

// ConditionalData compares a call variable and branches on true/false.
type ConditionalData struct {
	Label    string   `json:"label"`
	Variable string   `json:"variable"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

func (d *ConditionalData) Kind() Kind        { return KindConditional }
func (d *ConditionalData) NodeLabel() string { return d.Label }
func (d *ConditionalData) Clone() NodeData   { c := *d; return &c }

// SetVariableData assigns a call variable.
type SetVariableData struct {
	Label       string      `json:"label"`
	Variable    string      `json:"variable"`
	Value       string      `json:"value"`
	ValueSource ValueSource `json:"value_source"`
}

func (d *SetVariableData) Kind() Kind        { return KindSetVariable }
func (d *SetVariableData) NodeLabel() string { return d.Label }
func (d *SetVariableData) Clone() NodeData   { c := *d; return &c }

// HangupData ends the call.
type HangupData struct {
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

func (d *HangupData) Kind() Kind        { return KindHangup }
func (d *HangupData) NodeLabel() string { return d.Label }
func (d *HangupData) Clone() NodeData   { c := *d; return &c }

// OptOutData removes the caller from future campaigns.
// When HangupAfter is set the node is terminal.
type OptOutData struct {
	Label               string `json:"label"`
	ConfirmationAudioID string `json:"confirmation_audio_id"`
	HangupAfter         bool   `json:"hangup_after"`
	Reason              string `json:"reason"`
}

func (d *OptOutData) Kind() Kind        { return KindOptOut }
func (d *OptOutData) NodeLabel() string { return d.Label }
func (d *OptOutData) Clone() NodeData   { c := *d; return &c }

// UnmarshalJSON keeps HangupAfter true unless the document says otherwise.
func (d *OptOutData) UnmarshalJSON(b []byte) error {
	type plain OptOutData
	p := plain{HangupAfter: true}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = OptOutData(p)
	return nil
}
