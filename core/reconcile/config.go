package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the synchronization settings loaded from the environment.
type Config struct {
	// CrossRefKey is the source attribute holding the destination id.
	CrossRefKey string `mapstructure:"cross_ref_key" default:"avalon_mongo_id"`
	// IgnoreSyncKey is the source attribute excluding a subtree from sync.
	IgnoreSyncKey string `mapstructure:"ignore_sync_key" default:"avalon_ignore_sync"`
	// FPSKeys is a comma separated list of frame rate attribute keys.
	FPSKeys string `mapstructure:"fps_keys" default:"fps"`
	// NamePatterns overrides name patterns, e.g. "asset=^[a-z0-9_]+$,task=^[a-z]+$".
	NamePatterns string `mapstructure:"name_patterns" default:""`
	// DryRun computes plans without writing.
	DryRun bool `mapstructure:"dry_run" default:"false"`
	// LockTimeoutSeconds bounds the wait for a running sync of the same project.
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds" default:"60"`
	// ReportPrefix is the storage prefix reports are archived under.
	ReportPrefix string `mapstructure:"report_prefix" default:"reports"`
	// ReportRetention is the number of archived reports kept per project. Zero keeps all.
	ReportRetention int `mapstructure:"report_retention" default:"50"`
	// SourcePath is the default YAML snapshot used by the sync command.
	SourcePath string `mapstructure:"source_path" default:""`
}

// Options converts the configuration into engine options.
func (c Config) Options() (Options, error) {
	patterns, err := ParseNamePatterns(c.NamePatterns)
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		CrossRefKey:   c.CrossRefKey,
		IgnoreSyncKey: c.IgnoreSyncKey,
		NamePatterns:  patterns,
		DryRun:        c.DryRun,
		LockTimeout:   time.Duration(c.LockTimeoutSeconds) * time.Second,
	}
	for _, k := range strings.Split(c.FPSKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			opts.FPSKeys = append(opts.FPSKeys, k)
		}
	}
	return opts, nil
}

// ParseNamePatterns parses "kind=pattern" pairs separated by commas.
// Patterns may not contain commas.
func ParseNamePatterns(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kind, pattern, ok := strings.Cut(strings.TrimSpace(pair), "=")
		kind = strings.TrimSpace(kind)
		if !ok || kind == "" || pattern == "" {
			return nil, fmt.Errorf("invalid name pattern %q: expected kind=pattern", pair)
		}
		out[kind] = pattern
	}
	return out, nil
}
