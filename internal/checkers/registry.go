package checkers

import (
	"fmt"
	"sort"
	"strings"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"
)

// Constructor builds a checker for one named configuration.
type Constructor func(configName string, params domain.Params, logger ports.Logger) (ports.Checker, error)

// Registry maps strategy type names to constructors.
type Registry struct {
	constructors map[string]Constructor
	logger       ports.Logger
}

// NewRegistry returns a registry holding every built-in strategy.
func NewRegistry(logger ports.Logger) *Registry {
	r := &Registry{constructors: make(map[string]Constructor), logger: logger}
	r.Register(StrategySunsetOgle, NewSunsetOgle)
	r.Register(StrategyKOI, NewKOI)
	r.Register(StrategySEDNA, NewSEDNA)
	r.Register(StrategyGEMINI, NewGEMINI)
	r.Register(StrategyGLIESE, NewGLIESE)
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[strings.ToLower(name)] = ctor
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates the checker for cfg. Unknown strategy types, missing parameters and
// parameters of the wrong type are configuration errors that should abort startup.
func (r *Registry) New(cfg domain.StrategyConfig) (ports.Checker, error) {
	ctor, ok := r.constructors[strings.ToLower(cfg.StrategyType)]
	if !ok {
		return nil, fmt.Errorf("configuration %s: %w: %w: %q (known: %s)",
			cfg.Name, ports.ErrConfigurationError, ports.ErrUnknownStrategy, cfg.StrategyType, strings.Join(r.Names(), ", "))
	}
	if cfg.Params == nil {
		cfg.Params = domain.Params{}
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("configuration %s: %w: %w", cfg.Name, ports.ErrConfigurationError, err)
	}
	checker, err := ctor(cfg.Name, cfg.Params, r.logger)
	if err != nil {
		return nil, fmt.Errorf("configuration %s: %w", cfg.Name, err)
	}
	if dual, ok := checker.(interface{ NeedsReference() bool }); ok && dual.NeedsReference() && cfg.ReferenceSymbol.IsNone() {
		return nil, fmt.Errorf("configuration %s: %w: %w: reference_symbol is required", cfg.Name, ports.ErrConfigurationError, ports.ErrMissingReference)
	}
	return checker, nil
}

func requireParams(p domain.Params, keys ...string) error {
	if err := p.Require(keys...); err != nil {
		return fmt.Errorf("%w: %w: %w", ports.ErrConfigurationError, ports.ErrMissingParameter, err)
	}
	return nil
}
