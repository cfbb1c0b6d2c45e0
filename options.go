package dynproxy

import (
	"log/slog"
	"net/url"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// EnvOptions is the environment variable read by [OptionsFromEnv].
const EnvOptions = "DYNPROXY_OPTIONS"

var (
	validate      = validator.New()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Options configures a [Factory].
type Options struct {
	// CacheSize is the number of generated proxy types kept. Zero disables
	// caching: every build generates a new type.
	CacheSize int `schema:"cache_size" validate:"gte=0,lte=65536"`

	// LogLevel is the level of loggers built from these options, such as the
	// command line logger. A logger given to [Factory.WithLogger] keeps its
	// own level.
	LogLevel string `schema:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// StrictAbstract makes Build fail when a member has no implementation
	// and no target is configured.
	StrictAbstract bool `schema:"strict_abstract"`

	// TypeNamePrefix prefixes generated proxy type names.
	TypeNamePrefix string `schema:"type_name_prefix" validate:"required,alphanum,max=32"`
}

// DefaultOptions returns the options a new [Factory] starts with.
func DefaultOptions() Options {
	return Options{
		CacheSize:      256,
		LogLevel:       "info",
		TypeNamePrefix: "Proxy",
	}
}

// Validate checks o. Failures are reported as [ErrInvalidConfiguration].
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return AsError(err)
	}
	return nil
}

// Level returns LogLevel as a slog level.
func (o Options) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseOptions decodes query-string encoded options on top of the defaults,
// e.g. "cache_size=64&log_level=debug&strict_abstract=true".
func ParseOptions(query string) (Options, error) {
	opts := DefaultOptions()
	values, err := url.ParseQuery(query)
	if err != nil {
		return opts, Errorf(CodeInvalidConfiguration, "parsing options: %v", err)
	}
	if err := schemaDecoder.Decode(&opts, values); err != nil {
		return opts, Errorf(CodeInvalidConfiguration, "decoding options: %v", err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// OptionsFromEnv parses the options in $DYNPROXY_OPTIONS. An unset variable
// yields the defaults.
func OptionsFromEnv() (Options, error) {
	return ParseOptions(os.Getenv(EnvOptions))
}
