// Package config loads run parameters from .env files and SAAS_GROWTH_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"saas-growth/pkg/models"
	"saas-growth/pkg/simulation"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every config key.
const Prefix = "SAAS_GROWTH_"

const dateLayout = "2006-01-02"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultFiles are read when Load is called without paths. Missing files are skipped.
var DefaultFiles = []string{".env", ".env.local"}

// Load parses the config from the given .env files and the process
// environment. Later files override earlier ones; the process environment
// overrides every file.
func Load(files ...string) (models.Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	vars := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return models.Config{}, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	var cfg models.Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix, Environment: vars}); err != nil {
		return models.Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and that the window end follows its start.
func Validate(cfg models.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		sort.Strings(msgs)
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	if _, err := Window(cfg); err != nil {
		return err
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fe.Field() + " must be a YYYY-MM-DD date"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "len", "numeric":
		return fe.Field() + " must be a MMYYYY month"
	default:
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

// Window parses the simulation window of cfg.
func Window(cfg models.Config) (simulation.Window, error) {
	start, err := time.Parse(dateLayout, cfg.Start)
	if err != nil {
		return simulation.Window{}, fmt.Errorf("%w: start: %v", ErrInvalidConfig, err)
	}
	end, err := time.Parse(dateLayout, cfg.End)
	if err != nil {
		return simulation.Window{}, fmt.Errorf("%w: end: %v", ErrInvalidConfig, err)
	}
	w := simulation.NewWindow(start, end)
	if err := w.Validate(); err != nil {
		return simulation.Window{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return w, nil
}
