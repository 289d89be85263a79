package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/survos/lingua/internal/keys"
	"github.com/survos/lingua/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %v", ev.Seq, ev.Op, ev.Outcome)
		if ev.Error != "" {
			fmt.Fprintf(&buf, " error=%q", ev.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// evaluateAssertions runs every assertion and collects the failures.
func (e *env) evaluateAssertions(ctx context.Context, assertions []Assertion, trace []TraceEvent) []error {
	var errs []error
	for _, a := range assertions {
		if err := e.evaluate(ctx, a, trace); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *env) evaluate(ctx context.Context, a Assertion, trace []TraceEvent) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: trace}
	}

	switch a.Type {
	case AssertCompletion:
		locale := keys.NormalizeLocale(a.Locale)
		stats, err := e.store.Completion(ctx, []string{locale})
		if err != nil {
			return fail("completion for "+locale, err.Error())
		}
		s := stats[0]
		actual := map[string]any{
			"total":      s.Total,
			"translated": s.Translated,
			"missing":    s.Missing,
			"pct":        s.Pct,
		}
		if diffs := matchFields(a.Expect, actual); len(diffs) > 0 {
			return fail(fmt.Sprintf("%s completion %v", locale, a.Expect), strings.Join(diffs, "; "))
		}

	case AssertStub:
		key, err := keys.SourceKey(a.Text, a.SourceLocale)
		if err != nil {
			return fail("valid source locale", err.Error())
		}
		engine := a.Engine
		if engine == "" {
			engine = model.DefaultEngine
		}
		target := keys.NormalizeLocale(a.Target)
		st, err := e.store.Stub(ctx, key, target, engine)
		if err != nil {
			return fail(fmt.Sprintf("stub %s/%s/%s", key, target, engine), err.Error())
		}
		actual := map[string]any{
			"status": string(st.Status),
			"text":   st.Text,
			"engine": st.Engine,
		}
		if diffs := matchFields(a.Expect, actual); len(diffs) > 0 {
			return fail(fmt.Sprintf("stub %q → %s %v", a.Text, target, a.Expect), strings.Join(diffs, "; "))
		}

	case AssertKey:
		key, err := keys.SourceKey(a.Text, a.SourceLocale)
		if err != nil {
			return fail(a.Key, err.Error())
		}
		if key != a.Key {
			return fail(a.Key, key)
		}

	case AssertSleeps:
		if n := e.sleeper.Calls(); n != *a.Count {
			return fail(fmt.Sprintf("%d sleep(s)", *a.Count), fmt.Sprintf("%d sleep(s)", n))
		}

	case AssertServerPending:
		if n := e.server.PendingJobs(); n != *a.Count {
			return fail(fmt.Sprintf("%d pending job(s)", *a.Count), fmt.Sprintf("%d pending job(s)", n))
		}

	default:
		return fail("known assertion type", a.Type)
	}
	return nil
}
