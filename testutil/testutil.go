// Package testutil provides testing helpers for proxies: a recording
// interceptor, a fluent call builder, assertion helpers and a small universe
// of fixture types.
// This package is designed to be import-cycle safe and can be used from any
// package except dynproxy itself.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/broady/dynproxy"
)

// Call is one call seen by a [Recorder].
type Call struct {
	// Name is the diagnostic full name of the member.
	Name string

	// Method is the Go method name of the member, e.g. "Add" or "SetCount".
	Method string

	Args   []any
	Result any
	Err    error
}

// Recorder is an interceptor that records every call passing through it.
// It is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Intercept records the call after the rest of the chain ran.
func (r *Recorder) Intercept(inv *dynproxy.Invocation, next dynproxy.Handler) (any, error) {
	args := append([]any(nil), inv.Args...)
	res, err := next(inv)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{
		Name:   inv.Name(),
		Method: inv.Member().MethodName(),
		Args:   args,
		Result: res,
		Err:    err,
	})
	return res, err
}

// Calls returns a copy of the recorded calls, oldest first.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the Go method names of the recorded calls.
func (r *Recorder) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method
	}
	return out
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// CallBuilder helps make test calls on a proxy with a fluent API.
type CallBuilder struct {
	obj  *dynproxy.Object
	name string
	args []any
	ctx  context.Context
}

// NewCall starts a call of the member with Go method name name on obj.
func NewCall(obj *dynproxy.Object, name string) *CallBuilder {
	return &CallBuilder{obj: obj, name: name, ctx: context.Background()}
}

// WithArgs sets the call arguments.
func (b *CallBuilder) WithArgs(args ...any) *CallBuilder {
	b.args = args
	return b
}

// WithContext sets the call context.
func (b *CallBuilder) WithContext(ctx context.Context) *CallBuilder {
	b.ctx = ctx
	return b
}

// Do makes the call.
func (b *CallBuilder) Do() (any, error) {
	return b.obj.CallContext(b.ctx, b.name, b.args...)
}

// Expect makes the call and checks that it returned want without error.
func (b *CallBuilder) Expect(t testing.TB, want any) {
	t.Helper()
	res, err := b.Do()
	if err != nil {
		t.Fatalf("%s(%v): unexpected error: %v", b.name, b.args, err)
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("%s(%v) result mismatch (-want +got):\n%s", b.name, b.args, diff)
	}
}

// ExpectError makes the call and checks that it failed with code.
func (b *CallBuilder) ExpectError(t testing.TB, code dynproxy.ErrorCode) *ErrorResponse {
	t.Helper()
	_, err := b.Do()
	return AssertErrorCode(t, err, code)
}

// ErrorResponse is the serialized form of a [*dynproxy.Error].
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AssertErrorCode checks that err is a [*dynproxy.Error] with the expected
// code and returns its serialized form. The round trip through JSON checks
// that the details can be logged and shipped.
func AssertErrorCode(t testing.TB, err error, expectedCode dynproxy.ErrorCode) *ErrorResponse {
	t.Helper()
	var perr *dynproxy.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected a proxy error with code %s, got %v", expectedCode, err)
	}

	data, merr := json.Marshal(perr, json.Deterministic(true))
	if merr != nil {
		t.Fatalf("failed to encode error: %v", merr)
	}
	var resp ErrorResponse
	if uerr := json.Unmarshal(data, &resp); uerr != nil {
		t.Fatalf("failed to decode error: %v\nBody: %s", uerr, data)
	}

	if resp.Code != string(expectedCode) {
		t.Errorf("expected error code %s, got %s (message: %s)", expectedCode, resp.Code, resp.Message)
	}
	return &resp
}

// AssertMethods checks the Go method names of the calls r recorded.
func AssertMethods(t testing.TB, r *Recorder, expected ...string) {
	t.Helper()
	if diff := cmp.Diff(expected, r.Methods(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("recorded calls mismatch (-want +got):\n%s", diff)
	}
}
