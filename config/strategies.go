package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"liveSignalBot/internal/domain"
	"liveSignalBot/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"
)

// strategyEntry is one configuration as written in the strategies file.
type strategyEntry struct {
	Symbol          string                 `yaml:"symbol" validate:"required,uppercase"`
	ReferenceSymbol string                 `yaml:"reference_symbol" validate:"omitempty,uppercase,nefield=Symbol"`
	StrategyType    string                 `yaml:"strategy_type" validate:"required"`
	Enabled         bool                   `yaml:"enabled"`
	Params          map[string]interface{} `yaml:"params"`
}

// strategiesFile is the layout of the strategies YAML file.
type strategiesFile struct {
	Configurations map[string]strategyEntry `yaml:"configurations"`
}

// ReadStrategies loads every configuration of the strategies file, sorted by name.
func ReadStrategies(path string) ([]domain.StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file %s: %w: %w", path, ports.ErrConfigurationError, err)
	}
	return ParseStrategies(data)
}

// LoadStrategies loads the enabled configurations of the strategies file, sorted by name.
func LoadStrategies(path string) ([]domain.StrategyConfig, error) {
	all, err := ReadStrategies(path)
	if err != nil {
		return nil, err
	}
	enabled := make([]domain.StrategyConfig, 0, len(all))
	for _, c := range all {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

// ParseStrategies decodes and validates a strategies document.
func ParseStrategies(data []byte) ([]domain.StrategyConfig, error) {
	var file strategiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse strategies: %w: %w", ports.ErrConfigurationError, err)
	}
	if len(file.Configurations) == 0 {
		return nil, fmt.Errorf("strategies file defines no configurations: %w", ports.ErrConfigurationError)
	}

	validate := validator.New()
	var errs []string
	configs := make([]domain.StrategyConfig, 0, len(file.Configurations))
	for name, entry := range file.Configurations {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "configuration name must not be empty")
			continue
		}
		if err := validate.Struct(entry); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", name, describeValidation(err)))
			continue
		}

		ref := optional.None[string]()
		if entry.ReferenceSymbol != "" {
			ref = optional.Some(entry.ReferenceSymbol)
		}
		params := domain.Params{}
		for k, v := range entry.Params {
			params[k] = v
		}
		if err := params.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", name, err))
			continue
		}
		configs = append(configs, domain.StrategyConfig{
			Name:            name,
			Symbol:          entry.Symbol,
			ReferenceSymbol: ref,
			StrategyType:    strings.ToLower(entry.StrategyType),
			Enabled:         entry.Enabled,
			Params:          params,
		})
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("invalid strategies: %s: %w", strings.Join(errs, "; "), ports.ErrConfigurationError)
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
