package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Record field names shared across stages.
const (
	FieldQuestion           = "question"
	FieldAnswer             = "answer"
	FieldAgentAnswers       = "agent_answers"
	FieldStage2Prompt       = "stage2_prompt"
	FieldAgentOpinion       = "agent_opinion"
	FieldStage3Prompt       = "stage3_prompt"
	FieldFinalAgentDecision = "final_agent_decision"
)

// Exact field sets accepted for each stage's output.
var (
	AnswerFields   = []string{FieldQuestion, FieldAnswer, FieldAgentAnswers}
	CritiqueFields = []string{FieldQuestion, FieldAnswer, FieldStage2Prompt, FieldAgentOpinion}
	DecisionFields = []string{FieldQuestion, FieldAnswer, FieldStage3Prompt, FieldFinalAgentDecision}
)

var ErrMalformedRecord = errors.New("malformed stage output")

// QuestionHash identifies a question across stages and nodes.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(question)))
	return hex.EncodeToString(sum[:16])
}

// Record is one node's output for one question exactly as it was read from
// the store. Nothing about its shape is trusted until it is decoded into one
// of the stage variants.
type Record map[string]json.RawMessage

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// HasExactly reports whether the record carries precisely the given fields.
func (r Record) HasExactly(fields []string) bool {
	if len(r) != len(fields) {
		return false
	}
	for _, f := range fields {
		if _, ok := r[f]; !ok {
			return false
		}
	}
	return true
}

// Present reports whether field exists and is not JSON null.
func (r Record) Present(field string) bool {
	raw, ok := r[field]
	if !ok {
		return false
	}
	return !isNull(raw)
}

// String decodes a scalar field as text. Numbers and booleans keep their JSON
// spelling; missing or null fields yield "". Objects and arrays are malformed.
func (r Record) String(field string) (string, error) {
	raw, ok := r[field]
	if !ok || isNull(raw) {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: field %q is not valid JSON", ErrMalformedRecord, field)
	}
	switch v := v.(type) {
	case string:
		return v, nil
	case float64, bool:
		return string(bytes.TrimSpace(raw)), nil
	}
	return "", fmt.Errorf("%w: field %q is not a scalar", ErrMalformedRecord, field)
}

// StringMap decodes an object-of-strings field. Null, missing, scalar or
// array values are malformed.
func (r Record) StringMap(field string) (map[string]string, error) {
	raw, ok := r[field]
	if !ok || isNull(raw) {
		return nil, fmt.Errorf("%w: field %q is missing", ErrMalformedRecord, field)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: field %q is not a map of text", ErrMalformedRecord, field)
	}
	return m, nil
}

// Set encodes v into field, replacing any previous value.
func (r Record) Set(field string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", field, err)
	}
	r[field] = b
	return nil
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// StageOutputs maps question hash to this node's record for that question.
type StageOutputs map[string]Record

func (o StageOutputs) Clone() StageOutputs {
	out := make(StageOutputs, len(o))
	for k, v := range o {
		out[k] = v.Clone()
	}
	return out
}

// QuestionHashes returns the keys in sorted order.
func (o StageOutputs) QuestionHashes() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AnswerOutput is the stage-0 output, and also the shape of a merged
// stage-0 question.
type AnswerOutput struct {
	Question     string            `json:"question"`
	Answer       string            `json:"answer"`
	AgentAnswers map[string]string `json:"agent_answers"`
}

// CritiqueOutput is the stage-1 output, and also the shape of a merged
// stage-1 question.
type CritiqueOutput struct {
	Question     string            `json:"question"`
	Answer       string            `json:"answer"`
	Stage2Prompt string            `json:"stage2_prompt"`
	AgentOpinion map[string]string `json:"agent_opinion"`
}

// DecisionOutput is the stage-2 output consumed by round winner selection.
type DecisionOutput struct {
	Question           string            `json:"question"`
	Answer             string            `json:"answer"`
	Stage3Prompt       string            `json:"stage3_prompt"`
	FinalAgentDecision map[string]string `json:"final_agent_decision"`
}

// DecodeAnswerOutput accepts a record only if its field set is exactly
// AnswerFields and agent_answers is a map of text.
func DecodeAnswerOutput(r Record) (AnswerOutput, error) {
	if !r.HasExactly(AnswerFields) {
		return AnswerOutput{}, fmt.Errorf("%w: fields %v, want %v", ErrMalformedRecord, r.Fields(), AnswerFields)
	}
	var out AnswerOutput
	var err error
	if out.Question, err = r.String(FieldQuestion); err != nil {
		return AnswerOutput{}, err
	}
	if out.Answer, err = r.String(FieldAnswer); err != nil {
		return AnswerOutput{}, err
	}
	if out.AgentAnswers, err = r.StringMap(FieldAgentAnswers); err != nil {
		return AnswerOutput{}, err
	}
	return out, nil
}

// DecodeCritiqueOutput accepts a record only if its field set is exactly
// CritiqueFields and agent_opinion is a map of text.
func DecodeCritiqueOutput(r Record) (CritiqueOutput, error) {
	if !r.HasExactly(CritiqueFields) {
		return CritiqueOutput{}, fmt.Errorf("%w: fields %v, want %v", ErrMalformedRecord, r.Fields(), CritiqueFields)
	}
	var out CritiqueOutput
	var err error
	if out.Question, err = r.String(FieldQuestion); err != nil {
		return CritiqueOutput{}, err
	}
	if out.Answer, err = r.String(FieldAnswer); err != nil {
		return CritiqueOutput{}, err
	}
	if out.Stage2Prompt, err = r.String(FieldStage2Prompt); err != nil {
		return CritiqueOutput{}, err
	}
	if out.AgentOpinion, err = r.StringMap(FieldAgentOpinion); err != nil {
		return CritiqueOutput{}, err
	}
	return out, nil
}

func (o AnswerOutput) Record() (Record, error)   { return toRecord(o) }
func (o CritiqueOutput) Record() (Record, error) { return toRecord(o) }
func (o DecisionOutput) Record() (Record, error) { return toRecord(o) }

func toRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
