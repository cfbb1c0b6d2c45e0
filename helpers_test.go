package dynproxy

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/broady/dynproxy/typesys"
)

const fixturePkg = "example.com/fixtures"

func mustRegister(t *testing.T, types ...*typesys.Type) {
	t.Helper()
	if err := typesys.NewUniverse().Register(types...); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func newCalculator(t *testing.T) *typesys.Type {
	t.Helper()
	calc := typesys.NewInterface(fixturePkg, "Calculator").
		Method("Add", typesys.Params(typesys.P("x", "int"), typesys.P("y", "int")), typesys.Returns("int")).
		Build()
	mustRegister(t, calc)
	return calc
}

// newGreeter returns a class whose virtual Greet returns "hi" and counts its
// calls in calls.
func newGreeter(t *testing.T, calls *atomic.Int32) *typesys.Type {
	t.Helper()
	greeter := typesys.NewClass(fixturePkg, "Greeter").
		Method("Greet", typesys.Returns("string"), typesys.Body(func(typesys.Receiver, []any) (any, error) {
			calls.Add(1)
			return "hi", nil
		})).
		Build()
	mustRegister(t, greeter)
	return greeter
}

type calculator struct {
	calls atomic.Int32
}

func (c *calculator) Add(x, y int) int {
	c.calls.Add(1)
	return x + y
}

// trace records the order of interceptor and target events.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (tr *trace) add(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

func (tr *trace) interceptor(name string) Interceptor {
	return InterceptorFunc(func(inv *Invocation, next Handler) (any, error) {
		tr.add(name + "-before")
		res, err := next(inv)
		tr.add(name + "-after")
		return res, err
	})
}

func forward() Interceptor {
	return InterceptorFunc(func(inv *Invocation, next Handler) (any, error) {
		return next(inv)
	})
}

func returning(v any) Interceptor {
	return InterceptorFunc(func(*Invocation, Handler) (any, error) {
		return v, nil
	})
}

func ids(members []*VisitedMember) []typesys.MemberID {
	out := make([]typesys.MemberID, len(members))
	for i, m := range members {
		out[i] = m.ID
	}
	return out
}
