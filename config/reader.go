package config

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

// Read reads a config from the given file.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from. JSON input is accepted since it is
// a subset of YAML.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	unprocessedConfig := Config{
		ConfigFilePath: originalPath,
	}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&unprocessedConfig); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "failed to decode config from %q", originalPath)
	}

	cfg, err := processConfig(&unprocessedConfig, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to process config")
	}
	return cfg, nil
}

// processConfig converts every component's attributes to its native config and validates the
// result. Components whose API/model has no registration are kept with raw attributes so that
// construction can report them by name.
func processConfig(cfg *Config, logger logging.Logger) (*Config, error) {
	for idx, conf := range cfg.Components {
		reg, ok := resource.LookupRegistration(conf.API, conf.Model)
		if !ok {
			logger.Warnw("no registration for component", "name", conf.Name, "api", conf.API, "model", conf.Model)
			continue
		}
		if reg.AttributeMapConverter == nil {
			continue
		}

		converted, err := reg.AttributeMapConverter(conf.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "error converting attributes for (%s, %s)", conf.API, conf.Model)
		}
		cfg.Components[idx].ConvertedAttributes = converted
	}

	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return cfg, nil
}
