package resolver

import (
	"context"
	"strings"
)

// Attempt is one provider in an ordered fallback chain. When gates
// availability (missing credential, missing binary); a skipped attempt is
// not logged and not counted as a failure. Run returns a Result with
// usable text, or nil/error to fall through.
type Attempt struct {
	Name string
	When func() bool
	Run  func(ctx context.Context) (*Result, error)
}

// UnavailableProvider is appended to the attempt log when a chain is
// exhausted without any provider producing text.
const UnavailableProvider = "unavailable"

// RunChain tries attempts strictly in order and stops at the first one
// that yields non-empty text. Failures are recorded in notes and the
// chain moves on; once the context is done no further attempts are made.
// Returns nil when the chain is exhausted, after logging
// UnavailableProvider.
func RunChain(ctx context.Context, log *AttemptLog, notes *Notes, attempts []Attempt) *Result {
	for _, a := range attempts {
		if a.When != nil && !a.When() {
			continue
		}
		log.Add(a.Name)

		res, err := a.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				notes.Addf("%s timed out: %s", a.Name, Excerpt(err.Error(), 200))
				break
			}
			notes.Addf("%s failed: %s", a.Name, Excerpt(err.Error(), 200))
			continue
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			notes.Addf("%s returned no transcript text", a.Name)
			continue
		}
		if res.Source == "" {
			res.Source = a.Name
		}
		return res
	}

	log.Add(UnavailableProvider)
	return nil
}
