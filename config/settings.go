package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-micro.dev/v4/config"
	"go-micro.dev/v4/config/reader"
	"go.uber.org/multierr"
)

// Settings resolves a key from, in order: string overrides, the loaded
// TOML file, built-in defaults.
type Settings struct {
	cfg config.Config

	mu        sync.RWMutex
	overrides map[string]string
}

// NewSettings wraps cfg. A nil cfg yields defaults and overrides only.
func NewSettings(cfg config.Config) *Settings {
	return &Settings{
		cfg:       cfg,
		overrides: map[string]string{},
	}
}

// Set overrides key with a raw string value, as given on the command line.
func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = value
}

// SetPair parses "KEY=VALUE".
func (s *Settings) SetPair(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		return &Error{Key: pair, Err: errors.New("expected KEY=VALUE")}
	}
	s.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	return nil
}

func (s *Settings) override(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.overrides[key]
	return v, ok
}

func (s *Settings) lookup(key string) (reader.Value, bool) {
	if s.cfg == nil {
		return nil, false
	}
	v := s.cfg.Get(key)
	b := v.Bytes()
	if len(b) == 0 || string(b) == "null" {
		return nil, false
	}
	return v, true
}

func (s *Settings) Bool(key string) bool {
	def, _ := defaults[key].(bool)
	if raw, ok := s.override(key); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return def
		}
		return b
	}
	if v, ok := s.lookup(key); ok {
		return v.Bool(def)
	}
	return def
}

func (s *Settings) Int(key string) int {
	def, _ := defaults[key].(int)
	if raw, ok := s.override(key); ok {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return def
		}
		return i
	}
	if v, ok := s.lookup(key); ok {
		return v.Int(def)
	}
	return def
}

func (s *Settings) Float(key string) float64 {
	def, _ := defaults[key].(float64)
	if raw, ok := s.override(key); ok {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return def
		}
		return f
	}
	if v, ok := s.lookup(key); ok {
		return v.Float64(def)
	}
	return def
}

func (s *Settings) String(key string) string {
	def, _ := defaults[key].(string)
	if raw, ok := s.override(key); ok {
		return raw
	}
	if v, ok := s.lookup(key); ok {
		return v.String(def)
	}
	return def
}

// StringList reads a TOML array; overrides are comma separated.
func (s *Settings) StringList(key string) []string {
	def, _ := defaults[key].([]string)
	if raw, ok := s.override(key); ok {
		return splitList(raw)
	}
	if v, ok := s.lookup(key); ok {
		return v.StringSlice(def)
	}
	return def
}

func (s *Settings) IntList(key string) []int {
	def, _ := defaults[key].([]int)
	if raw, ok := s.override(key); ok {
		var out []int
		for _, item := range splitList(raw) {
			i, err := strconv.Atoi(item)
			if err != nil {
				return def
			}
			out = append(out, i)
		}
		return out
	}
	if v, ok := s.lookup(key); ok {
		var out []int
		if err := v.Scan(&out); err != nil || out == nil {
			return def
		}
		return out
	}
	return def
}

// Seconds reads a float number of seconds.
func (s *Settings) Seconds(key string) time.Duration {
	return time.Duration(s.Float(key) * float64(time.Second))
}

func splitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks the settings this runtime consumes and reports every
// invalid one.
func (s *Settings) Validate() error {
	var err error
	if s.Bool("MEMUSAGE_ENABLED") && s.Float("MEMUSAGE_CHECK_INTERVAL_SECONDS") <= 0 {
		err = multierr.Append(err, &Error{
			Key:   "MEMUSAGE_CHECK_INTERVAL_SECONDS",
			Value: fmt.Sprint(s.Float("MEMUSAGE_CHECK_INTERVAL_SECONDS")),
			Err:   errors.New("must be positive"),
		})
	}
	for _, key := range []string{"MEMUSAGE_LIMIT_MB", "MEMUSAGE_WARNING_MB"} {
		if s.Int(key) < 0 {
			err = multierr.Append(err, &Error{
				Key:   key,
				Value: strconv.Itoa(s.Int(key)),
				Err:   errors.New("must not be negative"),
			})
		}
	}
	if ports := s.IntList("STATUS_PORT"); len(ports) > 2 {
		err = multierr.Append(err, &Error{
			Key:   "STATUS_PORT",
			Value: fmt.Sprint(ports),
			Err:   errors.New("expected [] or [port] or [low, high]"),
		})
	}
	return err
}
