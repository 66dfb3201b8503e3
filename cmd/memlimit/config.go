package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk config format.
//
//	limit: 4mb
//	memory: 256mb
//	timeout: 30s
//	entry: run
//	params: [1, 2]
//	log_level: info
type fileConfig struct {
	Limit    string   `yaml:"limit"`
	Memory   string   `yaml:"memory"`
	Timeout  string   `yaml:"timeout"`
	Entry    string   `yaml:"entry"`
	Params   []uint64 `yaml:"params"`
	LogLevel string   `yaml:"log_level"`
}

func loadConfig(path string) (*fileConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	var cfg fileConfig
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// settings is the effective configuration of a run: config file values
// overridden by any flag set on the command line.
type settings struct {
	configPath  string
	limit       int64
	hasLimit    bool
	memoryPages uint32
	timeout     time.Duration
	entry       string
	params      []uint64
	logLevel    string
	watch       bool
	stats       bool
}

func resolveSettings(cmd *cobra.Command) (settings, error) {
	var s settings
	var file fileConfig

	s.configPath, _ = cmd.Flags().GetString("config")
	if s.configPath != "" {
		cfg, err := loadConfig(s.configPath)
		if err != nil {
			return s, err
		}
		file = *cfg
	}

	limit := file.Limit
	if f := cmd.Flags().Lookup("limit"); f != nil && f.Changed {
		limit = f.Value.String()
	}
	if limit != "" {
		n, err := parseSize(limit)
		if err != nil {
			return s, fmt.Errorf("limit: %w", err)
		}
		s.limit, s.hasLimit = n, true
	}

	memory := file.Memory
	if f := cmd.Flags().Lookup("memory"); f != nil && (f.Changed || memory == "") {
		memory = f.Value.String()
	}
	n, err := parseSize(memory)
	if err != nil {
		return s, fmt.Errorf("memory: %w", err)
	}
	s.memoryPages = pagesFor(n)

	s.timeout = 30 * time.Second
	if file.Timeout != "" {
		if s.timeout, err = time.ParseDuration(file.Timeout); err != nil {
			return s, fmt.Errorf("timeout: %w", err)
		}
	}
	if cmd.Flags().Changed("timeout") {
		s.timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	s.entry, s.params = file.Entry, file.Params
	if cmd.Flags().Changed("call") {
		s.entry, _ = cmd.Flags().GetString("call")
		s.params = nil
	}
	if cmd.Flags().Changed("param") {
		raw, _ := cmd.Flags().GetStringSlice("param")
		if s.params, err = parseParams(raw); err != nil {
			return s, err
		}
	}

	s.logLevel = file.LogLevel
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		s.logLevel = lvl
	}

	s.watch, _ = cmd.Flags().GetBool("watch")
	if s.watch && s.configPath == "" {
		return s, fmt.Errorf("--watch requires --config")
	}
	s.stats, _ = cmd.Flags().GetBool("stats")

	return s, nil
}

// parseSize parses a byte count such as "4096", "64kb", "16mb" or "1gb".
// Empty means 0; negative values are passed through.
func parseSize(raw string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}

	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"kb", 1 << 10},
		{"mb", 1 << 20},
		{"gb", 1 << 30},
		{"b", 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	if n > math.MaxInt64/mult || n < math.MinInt64/mult {
		return 0, fmt.Errorf("size %q out of range", raw)
	}
	return n * mult, nil
}

// pagesFor converts a byte count to 64KB wasm pages, rounding up.
// Zero or negative means no cap.
func pagesFor(bytes int64) uint32 {
	const page = 65536
	if bytes <= 0 {
		return 0
	}
	pages := (bytes + page - 1) / page
	if pages > 65536 {
		return 65536
	}
	return uint32(pages)
}

// parseParams parses integer call parameters. Negative values are encoded
// as two's complement, which is how wasm reads both i32 and i64.
func parseParams(raw []string) ([]uint64, error) {
	params := make([]uint64, 0, len(raw))
	for _, r := range raw {
		v, err := strconv.ParseInt(strings.TrimSpace(r), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q", r)
		}
		params = append(params, uint64(v))
	}
	return params, nil
}
