package dynproxy

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/broady/dynproxy/typecache"
	"github.com/broady/dynproxy/typesys"
)

// Factory builds proxies. It owns the backend, the member policy and the
// cache of generated proxy types.
//
// Configure a Factory with the WithX methods before first use; afterwards it
// is safe for concurrent use.
//
//	f := dynproxy.NewFactory().WithLogger(logger)
//	calc, err := f.For(calculatorType).Invokes(logging).Build(ctx)
type Factory struct {
	logger  *slog.Logger
	backend Backend
	policy  Policy
	opts    Options

	initOnce sync.Once
	initErr  error
	cache    *typecache.Cache[TypeHandle]
}

// NewFactory returns a factory with the [DispatchBackend], the
// [DefaultPolicy] and [DefaultOptions].
func NewFactory() *Factory {
	return &Factory{
		backend: DispatchBackend{},
		policy:  DefaultPolicy{},
		opts:    DefaultOptions(),
	}
}

// WithLogger sets a custom logger for the factory.
// If not set, slog.Default() will be used.
func (f *Factory) WithLogger(logger *slog.Logger) *Factory {
	f.logger = logger
	return f
}

// WithBackend sets the backend generating proxy types.
func (f *Factory) WithBackend(b Backend) *Factory {
	f.backend = b
	return f
}

// WithPolicy sets the member interception policy.
func (f *Factory) WithPolicy(p Policy) *Factory {
	f.policy = p
	return f
}

// WithOptions replaces the options. They are validated on first use.
func (f *Factory) WithOptions(opts Options) *Factory {
	f.opts = opts
	return f
}

// Options returns the factory options.
func (f *Factory) Options() Options {
	return f.opts
}

func (f *Factory) init() error {
	f.initOnce.Do(func() {
		if f.backend == nil {
			f.backend = DispatchBackend{}
		}
		if f.policy == nil {
			f.policy = DefaultPolicy{}
		}
		if err := f.opts.Validate(); err != nil {
			f.initErr = err
			return
		}
		f.cache = typecache.New[TypeHandle](f.opts.CacheSize)
	})
	return f.initErr
}

func (f *Factory) log() *slog.Logger {
	if f.logger == nil {
		return slog.Default()
	}
	return f.logger
}

// CacheStats returns the type cache counters.
func (f *Factory) CacheStats() typecache.Stats {
	if f.init() != nil {
		return typecache.Stats{}
	}
	return f.cache.Stats()
}

// Generate returns the proxy type for d, generating it on first use.
// Descriptors with equal keys share one type.
func (f *Factory) Generate(ctx context.Context, d ProxyDescriptor) (TypeHandle, error) {
	if err := f.init(); err != nil {
		return nil, err
	}
	key := d.Key()
	digest := key.Digest().String()
	logger := f.log()

	h, hit, err := f.cache.GetOrCreate(ctx, cacheKey(digest, d), func() (TypeHandle, error) {
		members := CollectMembers(d, f.policy)
		name := TypeName(f.opts.TypeNamePrefix, d)
		// The flight is shared; one caller giving up must not fail the others.
		h, err := f.backend.Emit(context.WithoutCancel(ctx), EmitRequest{Name: name, Descriptor: d, Members: members})
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "proxy type generated",
			slog.String("type", name),
			slog.String("key", key.String()),
			slog.Int("members", members.Len()),
			slog.Int("excluded", len(members.Excluded)))
		return h, nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "proxy generation failed",
			slog.String("key", key.String()),
			slog.Any("error", err))
		return nil, err
	}
	if hit {
		logger.DebugContext(ctx, "proxy type cache hit",
			slog.String("type", h.Name()),
			slog.String("digest", digest))
	}
	return h, nil
}

// cacheKey extends the structural digest with the registration serials of the
// descriptor's types, so types that share a path but come from different
// universes never share a proxy type.
func cacheKey(digest string, d ProxyDescriptor) string {
	ifaces := d.InterfaceTypes()
	serials := make([]uint64, len(ifaces))
	for i, t := range ifaces {
		serials[i] = t.Serial()
	}
	slices.Sort(serials)

	var b strings.Builder
	b.WriteString(digest)
	b.WriteByte('/')
	b.WriteString(strconv.FormatUint(d.ParentType().Serial(), 10))
	for _, s := range serials {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(s, 10))
	}
	return b.String()
}

// For starts building a proxy of t: an interface proxy when t is an
// interface, otherwise a proxy deriving from the class t.
func (f *Factory) For(t *typesys.Type) *Builder {
	return &Builder{factory: f, declaring: t}
}

// Builder configures one proxy. It is returned by [Factory.For].
type Builder struct {
	factory      *Factory
	declaring    *typesys.Type
	interfaces   []*typesys.Type
	target       any
	args         []any
	interceptors []Interceptor
}

// Implements adds interfaces the proxy implements.
func (b *Builder) Implements(ifaces ...*typesys.Type) *Builder {
	b.interfaces = append(b.interfaces, ifaces...)
	return b
}

// Targets sets the instance calls are forwarded to after the interceptors.
func (b *Builder) Targets(target any) *Builder {
	b.target = target
	return b
}

// Arguments sets the base constructor arguments.
func (b *Builder) Arguments(args ...any) *Builder {
	b.args = args
	return b
}

// Invokes adds interceptors. The first one added runs first.
func (b *Builder) Invokes(interceptors ...Interceptor) *Builder {
	b.interceptors = append(b.interceptors, interceptors...)
	return b
}

// Descriptor validates the configuration and returns the proxy descriptor.
func (b *Builder) Descriptor() (ProxyDescriptor, error) {
	return NewDescriptor(b.declaring, b.interfaces...)
}

// Type returns the proxy type without creating an instance.
func (b *Builder) Type(ctx context.Context) (TypeHandle, error) {
	d, err := b.Descriptor()
	if err != nil {
		return nil, err
	}
	return b.factory.Generate(ctx, d)
}

// Build generates (or reuses) the proxy type and creates an instance.
func (b *Builder) Build(ctx context.Context) (*Object, error) {
	h, err := b.Type(ctx)
	if err != nil {
		return nil, err
	}
	if b.factory.opts.StrictAbstract && b.target == nil {
		for _, e := range h.Members().Members {
			if e.Base == nil {
				return nil, Errorf(CodeUnsupportedMember, "%s has no implementation and no target is configured", typesys.FullName(e.Member)).
					WithDetail("member", e.ID.String())
			}
		}
	}
	chain := NewChain(b.target, b.interceptors...)
	return h.Descriptor().CreateInstance(h, chain, b.args)
}
