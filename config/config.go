// Package config reads, validates and orders the component configuration of a spilink process.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

const (
	// DefaultLoopInterval is the period of a scheduler tick.
	DefaultLoopInterval = 16 * time.Millisecond
	// DefaultHighFrequencyInterval is the period of a scheduler tick while a component requested
	// high frequency looping.
	DefaultHighFrequencyInterval = time.Millisecond
)

// A Config describes the configuration of a spilink process.
type Config struct {
	Logging               LoggingConfig     `yaml:"logging" json:"logging"`
	LoopInterval          time.Duration     `yaml:"loop_interval" json:"loop_interval"`
	HighFrequencyInterval time.Duration     `yaml:"high_frequency_interval" json:"high_frequency_interval"`
	Components            []resource.Config `yaml:"components" json:"components"`

	ConfigFilePath string `yaml:"-" json:"-"`
}

// LoggingConfig sets the process wide log level, an optional rotated log file and per logger
// level patterns.
type LoggingConfig struct {
	Level      logging.Level                 `yaml:"level" json:"level"`
	File       string                        `yaml:"file" json:"file"`
	MaxSizeMB  int                           `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int                           `yaml:"max_backups" json:"max_backups"`
	Patterns   []logging.LoggerPatternConfig `yaml:"patterns" json:"patterns"`
}

// Validate checks the logging block and fills in defaults.
func (lc *LoggingConfig) Validate(path string) error {
	if lc.MaxSizeMB < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_size_mb must not be negative"))
	}
	if lc.MaxSizeMB == 0 {
		lc.MaxSizeMB = 10
	}
	if lc.MaxBackups < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_backups must not be negative"))
	}
	for idx, lpc := range lc.Patterns {
		if !logging.ValidatePattern(lpc.Pattern) {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.patterns.%d", path, idx),
				errors.Errorf("invalid logger pattern %q", lpc.Pattern))
		}
		if _, err := logging.LevelFromString(lpc.Level); err != nil {
			return goutils.NewConfigValidationError(fmt.Sprintf("%s.patterns.%d", path, idx), err)
		}
	}
	return nil
}

// Ensure ensures all parts of the config are valid and sorts components based on what they depend on.
func (c *Config) Ensure() error {
	if c.LoopInterval < 0 {
		return goutils.NewConfigValidationError("loop_interval", errors.New("must not be negative"))
	}
	if c.LoopInterval == 0 {
		c.LoopInterval = DefaultLoopInterval
	}
	if c.HighFrequencyInterval < 0 {
		return goutils.NewConfigValidationError("high_frequency_interval", errors.New("must not be negative"))
	}
	if c.HighFrequencyInterval == 0 {
		c.HighFrequencyInterval = DefaultHighFrequencyInterval
	}
	if err := c.Logging.Validate("logging"); err != nil {
		return err
	}

	for idx := 0; idx < len(c.Components); idx++ {
		dependsOn, err := c.Components[idx].Validate(fmt.Sprintf("%s.%d", "components", idx))
		if err != nil {
			return err
		}
		c.Components[idx].ImplicitDependsOn = dependsOn
	}

	if len(c.Components) > 0 {
		srtCmps, err := SortComponents(c.Components)
		if err != nil {
			return err
		}
		c.Components = srtCmps
	}

	return nil
}

// FindComponent finds a particular component by name.
func (c Config) FindComponent(name string) *resource.Config {
	for idx := range c.Components {
		if c.Components[idx].Name == name {
			return &c.Components[idx]
		}
	}
	return nil
}

// SortComponents sorts components such that every component comes after the components it
// depends on. Names must be unique and every dependency must name a configured component.
func SortComponents(components []resource.Config) ([]resource.Config, error) {
	componentToConfig := make(map[string]resource.Config, len(components))
	dependencies := map[string][]string{}

	for _, config := range components {
		if _, ok := componentToConfig[config.Name]; ok {
			return nil, errors.Errorf("component name %q is not unique", config.Name)
		}
		componentToConfig[config.Name] = config
		dependencies[config.Name] = config.Dependencies()
	}

	for _, config := range components {
		missing := lo.Filter(dependencies[config.Name], func(dep string, _ int) bool {
			_, ok := componentToConfig[dep]
			return !ok
		})
		if len(missing) > 0 {
			return nil, errors.Errorf("component %q depends on missing components %q", config.Name, missing)
		}
	}

	sortedCmps := make([]resource.Config, 0, len(components))
	visited := map[string]bool{}

	var dfsHelper func(string, []string) error
	dfsHelper = func(name string, path []string) error {
		for idx, cmpName := range path {
			if name == cmpName {
				return errors.Errorf("circular dependency detected in component list between %s",
					strings.Join(append(path[idx:], name), ", "))
			}
		}

		path = append(path, name)
		if _, ok := visited[name]; ok {
			return nil
		}
		visited[name] = true
		for _, dp := range dependencies[name] {
			pathCopy := make([]string, len(path))
			copy(pathCopy, path)

			if err := dfsHelper(dp, pathCopy); err != nil {
				return err
			}
		}
		sortedCmps = append(sortedCmps, componentToConfig[name])
		return nil
	}

	for _, c := range components {
		if _, ok := visited[c.Name]; !ok {
			if err := dfsHelper(c.Name, nil); err != nil {
				return nil, err
			}
		}
	}

	return sortedCmps, nil
}
