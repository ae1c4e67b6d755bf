package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultRangeDays            = 30
	defaultListenAddr           = ":8080"
	defaultJournalRetentionDays = 90
)

// Config is the configuration struct for the service.
type Config struct {
	// BackendURL is the dashboard backend base url.
	BackendURL string
	// Ticker is the initially displayed ticker.
	Ticker string
	// Sources are the news sources scraped on refresh.
	Sources []string
	// SourcesFile is the filepath to an optional yaml file listing news sources.
	SourcesFile string
	// RangeDays is the number of days displayed by default.
	RangeDays int
	// Padding is the number of synthetic chart points reserved for projections.
	Padding int
	// ListenAddr is the address the api listens on.
	ListenAddr string
	// DBEndpoint is the cycle journal database endpoint.
	DBEndpoint string
	// DBUser is the cycle journal database user.
	DBUser string
	// DBPass is the cycle journal database user pass.
	DBPass string
	// JournalRetentionDays is the number of days refresh cycles are retained.
	JournalRetentionDays int

	registeredFlags map[string]bool
}

// sourcesFile represents the yaml sources file.
type sourcesFile struct {
	Sources []string `yaml:"sources"`
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.BackendURL == "" {
		errs = errors.Join(errs, fmt.Errorf("backend url cannot be an empty string"))
	}
	if cfg.Ticker == "" {
		errs = errors.Join(errs, fmt.Errorf("ticker cannot be an empty string"))
	}
	if cfg.RangeDays < 0 {
		errs = errors.Join(errs, fmt.Errorf("range days cannot be negative"))
	}
	if cfg.Padding < 0 {
		errs = errors.Join(errs, fmt.Errorf("padding cannot be negative"))
	}
	if cfg.JournalRetentionDays < 0 {
		errs = errors.Join(errs, fmt.Errorf("journal retention days cannot be negative"))
	}

	return errs
}

// applyDefaults sets the defaults of unset optional fields.
func (cfg *Config) applyDefaults() {
	if cfg.RangeDays == 0 {
		cfg.RangeDays = defaultRangeDays
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.JournalRetentionDays == 0 {
		cfg.JournalRetentionDays = defaultJournalRetentionDays
	}
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = splitList(defValue)
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = splitList(s)
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// splitList splits the provided comma separated list, dropping blank entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for idx := range parts {
		part := strings.TrimSpace(parts[idx])
		if part != "" {
			list = append(list, part)
		}
	}

	return list
}

// loadSourcesFile reads the news sources listed in the provided yaml file.
func loadSourcesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}

	var file sourcesFile
	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("parsing sources file: %w", err)
	}

	return file.Sources, nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"backendurl", &cfg.BackendURL, "the dashboard backend base url"},
		{"ticker", &cfg.Ticker, "the initially displayed ticker"},
		{"sources", &cfg.Sources, "the comma separated news sources scraped on refresh"},
		{"sourcesfile", &cfg.SourcesFile, "the yaml file listing news sources"},
		{"rangedays", &cfg.RangeDays, "the number of days displayed by default"},
		{"padding", &cfg.Padding, "the number of chart points reserved for projections"},
		{"listenaddr", &cfg.ListenAddr, "the api listen address"},
		{"dbendpoint", &cfg.DBEndpoint, "the cycle journal database endpoint"},
		{"dbuser", &cfg.DBUser, "the cycle journal database user"},
		{"dbpass", &cfg.DBPass, "the cycle journal database pass"},
		{"journalretentiondays", &cfg.JournalRetentionDays, "the number of days refresh cycles are retained"},
	}
	for idx := range flags {
		err = cfg.registerFlag(flags[idx].name, flags[idx].value, flags[idx].usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	if cfg.SourcesFile != "" {
		sources, err := loadSourcesFile(cfg.SourcesFile)
		if err != nil {
			return err
		}

		cfg.Sources = append(cfg.Sources, sources...)
	}

	cfg.applyDefaults()

	return cfg.Validate()
}
