// Package resource tracks long-lived backend handles (connection pools,
// open database files) so that a leaked, never-closed handle panics instead
// of silently leaking a file descriptor.
package resource

import (
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"
)

// profiles is indexed by profile name, "resource:" followed by the dynamic
// type name of the tracked object, e.g. "resource:*sqlitekv.Backend".
var (
	profilesMu sync.Mutex
	profiles   = map[string]*pprof.Profile{}
)

// Token is an opaque handle returned by NewToken and passed to Track/Untrack.
type Token struct {
	tracked bool
}

// NewToken creates a new tracking token.
func NewToken() *Token {
	return new(Token)
}

// profileName returns the pprof profile name used for obj's dynamic type.
func profileName(obj any) string {
	return fmt.Sprintf("resource:%T", obj)
}

func profileFor(obj any) *pprof.Profile {
	name := profileName(obj)

	profilesMu.Lock()
	defer profilesMu.Unlock()

	p := profiles[name]
	if p == nil {
		p = pprof.NewProfile(name)
		profiles[name] = p
	}

	return p
}

// Track registers obj as live in its type's profile and arranges for a
// panic if it is garbage-collected before Untrack is called.
func Track(obj any, token *Token) {
	p := profileFor(obj)
	p.Add(token, 1)

	token.tracked = true
	typeName := fmt.Sprintf("%T", obj)

	runtime.SetFinalizer(obj, func(any) {
		if token.tracked {
			panic(fmt.Sprintf("%s has not been finalized: call Close before it is garbage-collected", typeName))
		}
	})
}

// Untrack removes obj from its type's profile. It must be called exactly
// once, typically from a Close method, before obj becomes unreachable.
func Untrack(obj any, token *Token) {
	p := profileFor(obj)
	p.Remove(token)

	token.tracked = false
	runtime.SetFinalizer(obj, nil)
}
