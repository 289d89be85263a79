package wire

import (
	"fmt"
	"strings"
)

// Routes on the translation server.
const (
	RouteBatch  = "/batch-translate"
	RoutePull   = "/babel/pull"
	RouteJob    = "/job"
	RouteSource = "/source"
)

// JobPath returns the job status path for id.
func JobPath(id string) string {
	return fmt.Sprintf("%s/%s.json", RouteJob, id)
}

// SourcePath returns the source lookup path for key.
func SourcePath(key string) string {
	return fmt.Sprintf("%s/%s.json", RouteSource, key)
}

// Transport asks the server to execute a batch now or queue it.
type Transport string

const (
	TransportSync  Transport = "sync"
	TransportAsync Transport = "async"
)

// ParseTransport accepts "", "sync" and "async" (case-insensitive).
func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case "", TransportSync, TransportAsync:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transport %q: must be sync or async", s)
	}
}

// BatchRequest is the body of POST /batch-translate.
type BatchRequest struct {
	Texts            []string  `json:"texts"`
	Source           string    `json:"source"`
	Target           []string  `json:"target"`
	Engine           string    `json:"engine,omitempty"`
	InsertNewStrings bool      `json:"insertNewStrings"`
	ForceDispatch    bool      `json:"forceDispatch"`
	Transport        Transport `json:"transport,omitempty"`
	CallbackURL      string    `json:"callbackUrl,omitempty"`
}

// PullRequest is the body of POST /babel/pull. The same keys are sent under
// both field names so either server naming resolves them.
type PullRequest struct {
	Hashes []string `json:"hashes"`
	Keys   []string `json:"keys"`
}

// NewPullRequest builds a PullRequest for keys.
func NewPullRequest(keys []string) PullRequest {
	return PullRequest{Hashes: keys, Keys: keys}
}
