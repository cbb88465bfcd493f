package app_test

import (
	"testing"

	"github.com/dkeye/Meet/internal/app"
)

func TestBindOverwriteCancelsPrevious(t *testing.T) {
	r := app.NewRegistry()
	c1, c2 := &fakeSignalConn{}, &fakeSignalConn{}

	canceled := false
	r.Bind("p", c1, func() { canceled = true })
	r.Bind("p", c2, nil)

	if !canceled {
		t.Fatal("rebinding an id must cancel the previous connection's context")
	}
	got, ok := r.Get("p")
	if !ok || got != c2 {
		t.Fatal("registry must resolve to the newest connection")
	}
}

func TestUnbindConnIgnoresStaleConnection(t *testing.T) {
	r := app.NewRegistry()
	c1, c2 := &fakeSignalConn{}, &fakeSignalConn{}

	r.Bind("p", c1, nil)
	r.Bind("p", c2, nil)

	// The replaced connection's teardown runs after the rebind; it must
	// not evict its successor.
	r.UnbindConn("p", c1)
	if _, ok := r.Get("p"); !ok {
		t.Fatal("stale teardown evicted the live connection")
	}

	r.UnbindConn("p", c2)
	if _, ok := r.Get("p"); ok {
		t.Fatal("live connection was not unbound")
	}
}
