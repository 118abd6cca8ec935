package oracle

import "oracle-pricefeed/internal/container"

// StaticAuthorizer authorizes callers against a fixed allowlist, typically
// loaded from configuration at startup.
type StaticAuthorizer struct {
	callers *container.IndexedMap[string, struct{}]
}

// NewStaticAuthorizer builds an authorizer from the given caller identities.
func NewStaticAuthorizer(callers []string) *StaticAuthorizer {
	set := container.NewIndexedMap[string, struct{}]()
	for _, c := range callers {
		set.Put(c, struct{}{})
	}
	return &StaticAuthorizer{callers: set}
}

// IsAuthorized reports whether caller appears on the allowlist.
func (a *StaticAuthorizer) IsAuthorized(caller string) bool {
	_, ok := a.callers.Get(caller)
	return ok
}

var _ Authorizer = (*StaticAuthorizer)(nil)
