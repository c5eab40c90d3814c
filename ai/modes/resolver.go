package modes

import (
	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/llm"
)

// ErrUnknownMode is returned when a mode name is absent from the table.
var ErrUnknownMode = errors.New("unknown mode")

// Request is one inbound resolution request. Either Mode or an explicit
// Provider/Model override must be supplied; explicit values take precedence
// over the table.
type Request struct {
	Mode     string
	Provider string
	Model    string
	Options  *llm.Options
}

// Resolver resolves modes against an immutable Config. Safe for concurrent
// use from any number of callers.
type Resolver struct {
	cfg *Config
}

// NewResolver creates a Resolver over a validated config.
func NewResolver(cfg *Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve maps a mode name to its (provider, model, options) triple.
func (r *Resolver) Resolve(mode string) (ModeSpec, error) {
	spec, ok := r.cfg.Modes[mode]
	if !ok {
		return ModeSpec{}, errors.Wrapf(ErrUnknownMode, "mode %q", mode)
	}
	return spec, nil
}

// ResolveRequest resolves a full inbound request, handling the explicit
// override path. When the request names a model, resolution short-circuits
// the table: the provider defaults to the configured default provider if
// not given. Otherwise the mode (or "default" when empty) is looked up.
// Request options override the resolved ones field-by-field.
func (r *Resolver) ResolveRequest(req Request) (ModeSpec, error) {
	var spec ModeSpec

	if req.Model != "" {
		spec = ModeSpec{
			Provider: req.Provider,
			Model:    req.Model,
			Options:  defaultOptions(),
		}
		if spec.Provider == "" {
			spec.Provider = r.cfg.DefaultProvider
		}
	} else {
		mode := req.Mode
		if mode == "" {
			mode = DefaultMode
		}
		resolved, err := r.Resolve(mode)
		if err != nil {
			return ModeSpec{}, err
		}
		spec = resolved
		if req.Provider != "" {
			spec.Provider = req.Provider
		}
	}

	if req.Options != nil {
		if req.Options.MaxTokens > 0 {
			spec.Options.MaxTokens = req.Options.MaxTokens
		}
		if req.Options.Temperature > 0 {
			spec.Options.Temperature = req.Options.Temperature
		}
	}

	return spec, nil
}

func defaultOptions() llm.Options {
	return llm.Options{MaxTokens: 2048, Temperature: 0.7}
}
