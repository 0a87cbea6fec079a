package lifecycle

import "context"

// TokenSource is the credential collaborator consulted before mutating calls.
type TokenSource interface {
	Token() (string, bool)
}

// Run drives one request through tracker. Mutating operations require a token
// from creds; without one the tracker goes straight to Rejected with
// ErrTokenMissing and call is never invoked. On success apply receives the
// result exactly once, unless the request was superseded, in which case Run
// returns ErrSuperseded and apply is skipped.
func Run[T any](ctx context.Context, tracker *Tracker, creds TokenSource, call func(context.Context) (T, error), apply func(T)) (T, error) {
	var zero T
	if tracker.Kind().Mutating() && !hasToken(creds) {
		tracker.Fail(ErrTokenMissing)
		return zero, ErrTokenMissing
	}

	ticket, reqCtx := tracker.Start(ctx)
	result, err := call(reqCtx)
	if err != nil {
		if !tracker.Reject(ticket, err) {
			return zero, ErrSuperseded
		}
		return zero, err
	}

	accepted := tracker.Resolve(ticket, func() {
		if apply != nil {
			apply(result)
		}
	})
	if !accepted {
		return zero, ErrSuperseded
	}
	return result, nil
}

func hasToken(creds TokenSource) bool {
	if creds == nil {
		return false
	}
	tok, ok := creds.Token()
	return ok && tok != ""
}
