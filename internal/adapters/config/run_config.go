package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.trai.ch/rnaflow/internal/core/domain"
	"go.trai.ch/zerr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("wildcard", func(fl validator.FieldLevel) bool {
			return wildcardValueRegex.MatchString(fl.Field().String())
		})
	})
	return validate
}

// LoadRunConfig reads the run configuration at path. A .env file next to it is
// loaded into the process environment first, and RNAFLOW_ prefixed variables
// override keys of the file (RNAFLOW_THREADS, RNAFLOW_TRIM_QUALITY).
func (l *Loader) LoadRunConfig(path string) (*domain.RunConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(domain.ErrConfigNotFound, "path", path)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", envFile)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(domain.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("threads", 1)
	for _, key := range []string{"seed", "workdir", "design"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	var cfg domain.RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	if err := validateRunConfig(&cfg); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	if cfg.WorkDir != "" && !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(filepath.Dir(path), cfg.WorkDir)
	}
	if cfg.WorkDir != "" {
		abs, err := filepath.Abs(cfg.WorkDir)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrFailedToGetRoot.Error()), "path", cfg.WorkDir)
		}
		cfg.WorkDir = abs
	}

	l.Logger.Info("loaded run configuration from " + path)
	return &cfg, nil
}

func validateRunConfig(cfg *domain.RunConfig) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return zerr.Wrap(err, domain.ErrConfigInvalid.Error())
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fieldPath(fe.Namespace())+": "+describe(fe))
	}
	return zerr.With(domain.ErrConfigInvalid, "fields", strings.Join(messages, "; "))
}

func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return strings.ToLower(rest)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "unique":
		return "must be unique by " + strings.ToLower(fe.Param())
	case "wildcard":
		return "may only contain letters, digits, '_', '.' and '-'"
	default:
		return "is invalid"
	}
}
