package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Backends lists the store implementations the importer can be built with.
var Backends = []string{"postgres", "sqlite", "elasticsearch", "firestore"}

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing required setting is reported in one error so a fresh
// install can be fixed in a single pass.
func Load() (*Config, error) {
	cfg := &Config{}

	l := &loader{}
	if err := l.load(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if len(l.missing) > 0 {
		return nil, fmt.Errorf("config load: missing required settings: %s (set them in the environment or .env)",
			strings.Join(l.missing, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loader walks the Config tree. Struct tags:
//
//	env       primary variable name
//	envAlt    fallback variable name
//	default   value used when both are unset
//	required  "true" records the setting as missing when unset
//	fold      "lower" lower-cases enumerated values such as backends
//	unit      "bytes" accepts sizes like 512KB or 100MB
type loader struct {
	missing []string
}

func (l *loader) load(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if err := l.load(fieldVal); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value, from := lookup(name, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				l.missing = append(l.missing, settingName(name, field.Tag.Get("envAlt")))
				continue
			}
			value, from = field.Tag.Get("default"), name
		}
		if value == "" {
			continue
		}

		if field.Tag.Get("fold") == "lower" {
			value = strings.ToLower(value)
		}

		if err := setField(fieldVal, value, field.Tag.Get("unit")); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", from, value, err)
		}
	}

	return nil
}

// lookup returns the first non-blank value of name or alt, and the variable
// it came from.
func lookup(name, alt string) (string, string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, name
	}
	if alt != "" {
		if v := strings.TrimSpace(os.Getenv(alt)); v != "" {
			return v, alt
		}
	}
	return "", name
}

func settingName(name, alt string) string {
	if alt == "" {
		return name
	}
	return name + " (or " + alt + ")"
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value, unit string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
		case unit == "bytes":
			n, err := parseByteSize(value)
			if err != nil {
				return err
			}
			field.SetInt(n)
		default:
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// byteUnits is checked longest suffix first so "MB" is not read as "B".
var byteUnits = []struct {
	suffix string
	scale  int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseByteSize reads a plain byte count or a count with a KB, MB or GB
// suffix (binary multiples, case-insensitive).
func parseByteSize(value string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	scale := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(upper, u.suffix) {
			upper = strings.TrimSpace(strings.TrimSuffix(upper, u.suffix))
			scale = u.scale
			break
		}
	}

	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q: want bytes or a KB/MB/GB suffix", value)
	}
	return n * scale, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Store validation
	if c.Store.URL == "" {
		errs = append(errs, "STORE_URL is required")
	}
	if c.Store.WriteKey == "" {
		errs = append(errs, "STORE_WRITE_KEY is required")
	}
	if !contains(Backends, c.Store.Backend) {
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: %s",
			c.Store.Backend, strings.Join(Backends, ", ")))
	}
	if strings.TrimSpace(c.Store.Collection) == "" {
		errs = append(errs, "IMPORT_COLLECTION must not be empty")
	}

	// Database validation
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Import validation
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.Timeout < 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be non-negative")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	switch c.Import.IDStrategy {
	case "random", "content":
	default:
		errs = append(errs, fmt.Sprintf("IMPORT_ID_STRATEGY (%q) must be one of: random, content", c.Import.IDStrategy))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RunWaitTime <= 0 {
		errs = append(errs, "SERVER_RUN_WAIT_TIME must be positive")
	}

	// Notify validation
	if len(c.Notify.KafkaBrokers) > 0 && strings.TrimSpace(c.Notify.KafkaTopic) == "" {
		errs = append(errs, "KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	// Logging validation
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	if !contains([]string{"text", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The write key is never printed and the store URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Store: {Backend: %q, URL: [MASKED], WriteKey: [MASKED], Collection: %q}, ",
		c.Store.Backend, c.Store.Collection)
	fmt.Fprintf(&b, "Import: {Source: %q, BatchSize: %d, IDStrategy: %q}, ",
		c.Import.Source, c.Import.BatchSize, c.Import.IDStrategy)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeys))
	fmt.Fprintf(&b, "Notify: {Brokers: %d, Topic: %q}, ", len(c.Notify.KafkaBrokers), c.Notify.KafkaTopic)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
