package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/datahub/observe"
)

// Sentinel errors for configuration loading.
var (
	ErrInvalidConfig   = errors.New("config: invalid configuration")
	ErrMissingEnv      = errors.New("config: missing required environment variables")
	ErrUnknownProvider = errors.New("config: secret provider is not registered")
	ErrSecretNotFound  = errors.New("config: secret not found")
)

// Isolation modes.
const (
	ModeSubprocess = "subprocess"
	ModeInProcess  = "inprocess"
)

// DefaultAddr is the address the server listens on when none is configured.
const DefaultAddr = ":9151"

// Config is the whole DataHub configuration. The entry point loads it once
// and hands the relevant sections to each component.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Isolation IsolationConfig `yaml:"isolation"`
	Observe   observe.Config  `yaml:"observe"`
	Auth      AuthConfig      `yaml:"auth"`

	// Secrets maps a module path to the key/value secrets its queries read.
	Secrets map[string]map[string]string `yaml:"secrets"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`

	// Debug exposes cache paths and full error chains in responses.
	Debug bool `yaml:"debug"`

	// AllowAnonymous admits requests without credentials when auth is
	// configured.
	AllowAnonymous bool `yaml:"allow_anonymous"`

	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// CacheConfig configures the disk cache.
type CacheConfig struct {
	// Root replaces the cache root modules declare. Empty keeps theirs.
	Root string `yaml:"root"`
}

// IsolationConfig configures how queries are executed.
type IsolationConfig struct {
	Mode    string        `yaml:"mode" validate:"oneof=subprocess inprocess"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// MaxConcurrent bounds simultaneous queries. Zero means unbounded.
	MaxConcurrent int `yaml:"max_concurrent" validate:"gte=0"`

	// MaxWait is how long a query waits for a free slot.
	MaxWait time.Duration `yaml:"max_wait" validate:"gte=0"`

	// WorkerCommand starts a worker process. Empty means this executable
	// with the "worker" argument.
	WorkerCommand []string `yaml:"worker_command"`
}

// AuthConfig configures caller authentication. With no tokens and no JWT
// secret every request runs anonymously.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens" validate:"dive"`
	JWT    JWTConfig     `yaml:"jwt"`

	// Grants restricts module path prefixes to roles.
	Grants map[string][]string `yaml:"grants"`
}

// TokenConfig registers one authtoken.
type TokenConfig struct {
	ID        string    `yaml:"id"`
	User      string    `yaml:"user" validate:"required"`
	Token     string    `yaml:"token" validate:"required_without=Hash"`
	Hash      string    `yaml:"hash" validate:"omitempty,len=64,hexadecimal"`
	Roles     []string  `yaml:"roles"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Leeway   time.Duration `yaml:"leeway" validate:"gte=0"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.Tokens) > 0 || a.JWT.Secret != ""
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Isolation: IsolationConfig{
			Mode:    ModeSubprocess,
			Timeout: 5 * time.Minute,
		},
		Observe: observe.Config{
			ServiceName: "datahub",
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// ModuleSecrets returns the secrets configured for a module path, never nil.
func (c *Config) ModuleSecrets(module string) map[string]string {
	s := c.Secrets[strings.Trim(module, "/")]
	if s == nil {
		return map[string]string{}
	}
	return s
}

// Load reads the YAML file at path. Relative secretref:file references are
// taken from the file's directory.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(ctx, data, DefaultResolver(filepath.Dir(path)))
}

// Parse decodes YAML over Default(). Every string value is passed through
// resolver first; unknown keys are rejected.
func Parse(ctx context.Context, data []byte, resolver *Resolver) (*Config, error) {
	if resolver == nil {
		resolver = DefaultResolver("")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := Default()
	if root.Kind != 0 {
		if err := resolveNode(ctx, &root, resolver); err != nil {
			return nil, err
		}
		resolved, err := yaml.Marshal(&root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(resolved))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveNode rewrites string scalars in place. Plain scalars lose their
// tag so "${WORKERS}" can become an int.
func resolveNode(ctx context.Context, n *yaml.Node, r *Resolver) error {
	if n.Kind == yaml.ScalarNode {
		if n.ShortTag() != "!!str" {
			return nil
		}
		v, err := r.ResolveValue(ctx, n.Value)
		if err != nil {
			return fmt.Errorf("config: line %d: %w", n.Line, err)
		}
		if v != n.Value && n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			n.Tag = ""
		}
		n.Value = v
		return nil
	}
	for i, child := range n.Content {
		// Mapping keys are never resolved.
		if n.Kind == yaml.MappingNode && i%2 == 0 {
			continue
		}
		if err := resolveNode(ctx, child, r); err != nil {
			return err
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the observe section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	// Namespace is "Config.isolation.mode"; drop the root type.
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
