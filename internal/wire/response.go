package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedResponse is returned when a payload is not a structured object.
var ErrMalformedResponse = errors.New("malformed response")

// EnvelopeKeys are the wrapper fields Unwrap recognizes, in priority order.
var EnvelopeKeys = []string{"response", "data"}

// Field aliases, in priority order.
var (
	AcceptedAliases = []string{"items", "sources", "accepted"}
	MissingAliases  = []string{"missing", "rejected"}
	ItemKeyAliases  = []string{"key", "hash"}
)

// TranslationItem is one translation returned synchronously.
type TranslationItem struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Target string `json:"target"`
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
	Cached bool   `json:"cached"`
}

// BatchResponse is the canonical result of one /batch-translate call.
type BatchResponse struct {
	Status   string
	JobID    string
	Accepted int
	Queued   int
	Missing  int
	Items    []TranslationItem
	Error    string
	Message  string

	// Raw is the undecoded top-level payload, kept for --show-server output.
	Raw map[string]any
}

// JobState is the server-side state of an asynchronous job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobUnknown   JobState = "unknown"
)

// JobStatus is the result of GET /job/{id}.json.
type JobStatus struct {
	JobID    string            `json:"jobId"`
	State    JobState          `json:"state"`
	Progress *int              `json:"progress,omitempty"`
	Items    []TranslationItem `json:"items,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// Unwrap decodes body and peels at most one envelope level.
// It returns the inner (canonical) object and the top-level object; for flat
// payloads both are the same map.
func Unwrap(body []byte) (inner, top map[string]any, err error) {
	top, err = decodeObject(body)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range EnvelopeKeys {
		if v, ok := top[k]; ok {
			if m, ok := asObject(v); ok {
				return m, top, nil
			}
		}
	}
	return top, top, nil
}

// DecodeBatchResponse normalizes a /batch-translate payload.
// httpOK supplies the default status when the payload carries none.
func DecodeBatchResponse(body []byte, httpOK bool) (*BatchResponse, error) {
	inner, top, err := Unwrap(body)
	if err != nil {
		return nil, err
	}

	r := &BatchResponse{Raw: top}

	r.Status = stringify(first(top, inner, "status"))
	if r.Status == "" {
		r.Status = "ok"
		if !httpOK {
			r.Status = "error"
		}
	}
	r.JobID = stringify(first(top, inner, "jobId"))
	r.Queued = intish(first(inner, top, "queued"))
	r.Missing = countish(firstAlias(inner, top, MissingAliases))
	r.Accepted = countish(firstAlias(inner, top, AcceptedAliases))
	r.Error = errorText(first(inner, top, "error"))
	r.Message = stringify(first(inner, top, "message"))

	if raw, ok := first(top, inner, "items").([]any); ok {
		r.Items = decodeItems(raw)
	}
	return r, nil
}

// DecodePullResponse normalizes a /babel/pull payload into key → text.
// Keys the server did not resolve are absent. Non-scalar values are skipped.
func DecodePullResponse(body []byte) (map[string]string, error) {
	inner, _, err := Unwrap(body)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(inner))
	for k, v := range inner {
		switch v.(type) {
		case nil, map[string]any, []any:
			continue
		}
		out[k] = stringify(v)
	}
	return out, nil
}

// DecodeJobStatus normalizes a job payload. jobID fills in a missing id.
func DecodeJobStatus(body []byte, jobID string) (*JobStatus, error) {
	inner, _, err := Unwrap(body)
	if err != nil {
		return nil, err
	}

	js := &JobStatus{
		JobID:   stringify(inner["jobId"]),
		State:   JobState(stringify(inner["state"])),
		Message: stringify(inner["message"]),
	}
	if js.JobID == "" {
		js.JobID = jobID
	}
	if js.State == "" {
		js.State = JobUnknown
	}
	if v, ok := inner["progress"]; ok && v != nil {
		p := intish(v)
		js.Progress = &p
	}
	if raw, ok := inner["items"].([]any); ok {
		js.Items = decodeItems(raw)
	}
	return js, nil
}

// DecodeCallback normalizes a result payload pushed back by the server.
// It accepts the job status shape as well as a bare {items: [...]} object.
func DecodeCallback(body []byte) ([]TranslationItem, error) {
	inner, top, err := Unwrap(body)
	if err != nil {
		return nil, err
	}
	raw, _ := first(inner, top, "items").([]any)
	return decodeItems(raw), nil
}

func decodeObject(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	m, ok := asObject(v)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrMalformedResponse, v)
	}
	return m, nil
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) == 0 {
			return map[string]any{}, true
		}
	}
	return nil, false
}

func decodeItems(raw []any) []TranslationItem {
	items := make([]TranslationItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, TranslationItem{
			Key:    stringify(firstAlias(m, nil, ItemKeyAliases)),
			Source: stringify(m["source"]),
			Target: stringify(m["target"]),
			Text:   stringify(m["text"]),
			Engine: stringify(m["engine"]),
			Cached: truthy(m["cached"]),
		})
	}
	return items
}

// first returns the value of key in a, falling back to b.
func first(a, b map[string]any, key string) any {
	if v, ok := a[key]; ok && v != nil {
		return v
	}
	if v, ok := b[key]; ok && v != nil {
		return v
	}
	return nil
}

// firstAlias returns the first alias present in a, then in b.
func firstAlias(a, b map[string]any, aliases []string) any {
	for _, m := range []map[string]any{a, b} {
		for _, k := range aliases {
			if v, ok := m[k]; ok && v != nil {
				return v
			}
		}
	}
	return nil
}

// intish reads a count given as a number, numeric string or list.
func intish(v any) int {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	}
	return 0
}

// countish reads a count given as a number or a list; strings do not count.
func countish(v any) int {
	switch t := v.(type) {
	case json.Number, []any, map[string]any:
		return intish(t)
	}
	return 0
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// errorText reads an error field. false, null and "" mean no error.
func errorText(v any) string {
	if b, ok := v.(bool); ok && !b {
		return ""
	}
	return stringify(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		return t.String() != "0"
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}
