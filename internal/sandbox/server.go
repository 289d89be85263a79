// Package sandbox is an in-memory translation server speaking the same wire
// contract as the real one. Translations are deterministic pseudo-text, and
// queued (async) batches complete only after a configurable number of pull
// requests, which emulates a remote worker falling behind.
package sandbox

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/wire"
)

// DefaultEngine is recorded on translations when a request names none.
const DefaultEngine = "sandbox"

type source struct {
	text   string
	locale string
}

type work struct {
	key    string
	target string
	engine string
}

type job struct {
	id        string
	remaining int
	items     []work
	done      bool
}

// Server holds sandbox state. It is safe for concurrent use.
type Server struct {
	mu      sync.Mutex
	sources map[string]source
	// translations[locale][key] = text
	translations map[string]map[string]string
	engines      map[string]string // "key|locale" → engine
	jobs         map[string]*job
	order        []string

	delay  int
	apiKey string
	newID  func() string
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDelay sets how many pull requests a queued batch waits before completing.
func WithDelay(n int) Option {
	return func(s *Server) { s.delay = max(0, n) }
}

// WithAPIKey requires X-Api-Key or a bearer token on every request.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithIDFunc replaces UUIDv7 job IDs.
func WithIDFunc(fn func() string) Option {
	return func(s *Server) { s.newID = fn }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates an empty sandbox.
func New(opts ...Option) *Server {
	s := &Server{
		sources:      make(map[string]source),
		translations: make(map[string]map[string]string),
		engines:      make(map[string]string),
		jobs:         make(map[string]*job),
		newID:        func() string { return uuid.Must(uuid.NewV7()).String() },
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PseudoTranslate is the sandbox "engine": deterministic and reversible by eye.
func PseudoTranslate(text, target string) string {
	return fmt.Sprintf("[%s] %s", target, text)
}

// batchResult is the outcome of one batch before rendering.
type batchResult struct {
	accepted []string
	missing  []string
	items    []wire.TranslationItem
	queued   int
	jobID    string
}

func (s *Server) submit(req wire.BatchRequest) batchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	engine := req.Engine
	if engine == "" {
		engine = DefaultEngine
	}
	targets := keys.UniqueLocales(req.Target)

	var res batchResult
	var queue []work
	for _, text := range req.Texts {
		key, err := keys.SourceKey(text, req.Source)
		if err != nil || text == "" {
			res.missing = append(res.missing, text)
			continue
		}
		if _, known := s.sources[key]; !known {
			if !req.InsertNewStrings {
				res.missing = append(res.missing, key)
				continue
			}
			s.sources[key] = source{text: text, locale: keys.NormalizeLocale(req.Source)}
		}
		res.accepted = append(res.accepted, key)

		for _, target := range targets {
			if existing, ok := s.translations[target][key]; ok && !req.ForceDispatch {
				res.items = append(res.items, wire.TranslationItem{
					Key: key, Source: req.Source, Target: target, Text: existing,
					Engine: s.engines[key+"|"+target], Cached: true,
				})
				continue
			}
			w := work{key: key, target: target, engine: engine}
			if req.Transport == wire.TransportAsync {
				queue = append(queue, w)
				continue
			}
			s.apply(w)
			res.items = append(res.items, wire.TranslationItem{
				Key: key, Source: req.Source, Target: target,
				Text: s.translations[target][key], Engine: engine,
			})
		}
	}

	if len(queue) > 0 {
		j := &job{id: s.newID(), remaining: s.delay, items: queue}
		s.jobs[j.id] = j
		s.order = append(s.order, j.id)
		res.jobID = j.id
		res.queued = len(queue)
	}
	return res
}

// apply stores the pseudo-translation for w. Callers hold s.mu.
func (s *Server) apply(w work) {
	src := s.sources[w.key]
	if s.translations[w.target] == nil {
		s.translations[w.target] = make(map[string]string)
	}
	s.translations[w.target][w.key] = PseudoTranslate(src.text, w.target)
	s.engines[w.key+"|"+w.target] = w.engine
}

// tick advances queued jobs by one pull request. Callers hold s.mu.
func (s *Server) tick() {
	for _, id := range s.order {
		j := s.jobs[id]
		if j.done {
			continue
		}
		if j.remaining > 0 {
			j.remaining--
			continue
		}
		for _, w := range j.items {
			s.apply(w)
		}
		j.done = true
		s.logger.Debug("sandbox job completed", "job", j.id, "items", len(j.items))
	}
}

func (s *Server) pull(keyList []string, locale string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()

	out := make(map[string]string)
	for _, k := range keyList {
		if locale != "" {
			if text, ok := s.translations[locale][k]; ok {
				out[k] = text
			}
			continue
		}
		// Without a locale hint answer with the first locale that has one.
		for _, loc := range s.localesLocked() {
			if text, ok := s.translations[loc][k]; ok {
				out[k] = text
				break
			}
		}
	}
	return out
}

func (s *Server) localesLocked() []string {
	out := make([]string, 0, len(s.translations))
	for loc := range s.translations {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

func (s *Server) jobStatus(id string) (*wire.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	st := &wire.JobStatus{JobID: id, State: wire.JobPending}
	progress := 0
	if j.done {
		st.State = wire.JobCompleted
		progress = 100
		for _, w := range j.items {
			src := s.sources[w.key]
			st.Items = append(st.Items, wire.TranslationItem{
				Key: w.key, Source: src.locale, Target: w.target,
				Text: s.translations[w.target][w.key], Engine: w.engine,
			})
		}
	}
	st.Progress = &progress
	return st, true
}

func (s *Server) source(key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[key]
	if !ok {
		return nil, false
	}
	tr := make(map[string]string)
	for loc, m := range s.translations {
		if text, ok := m[key]; ok {
			tr[loc] = text
		}
	}
	return map[string]any{
		"key":          key,
		"text":         src.text,
		"source":       src.locale,
		"translations": tr,
	}, true
}

// Translation returns the stored translation of key into locale.
func (s *Server) Translation(key, locale string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.translations[locale][key]
	return text, ok
}

// PendingJobs returns the number of queued jobs not yet completed.
func (s *Server) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if !j.done {
			n++
		}
	}
	return n
}
