package authz

import "context"

type subjectContextKey struct{}

// ContextWithSubject stores the authenticated subject in ctx.
func ContextWithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, s)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectContextKey{}).(Subject)
	return s, ok
}

// CurrentSubject returns the request's subject or the unauthenticated rejection.
func CurrentSubject(ctx context.Context) (Subject, error) {
	s, ok := SubjectFromContext(ctx)
	if !ok {
		return Subject{}, Unauthenticated()
	}
	return s, nil
}
