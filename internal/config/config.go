// Package config loads locate.yaml and resolves it into the settings the
// terminal host and the flow run with.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/locate/pkg/flow"
	"github.com/go-drift/locate/pkg/platform"
	"github.com/go-drift/locate/pkg/sources"
)

// FileName is the configuration file looked up by default.
const FileName = "locate.yaml"

// Source kinds.
const (
	SourceStatic = "static"
	SourceNMEA   = "nmea"
	SourceGoogle = "google"
	SourceChain  = "chain"
)

// Config represents the optional locate.yaml configuration.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Updates      UpdatesConfig      `yaml:"updates"`
	Permissions  PermissionsConfig  `yaml:"permissions"`
	Source       SourceConfig       `yaml:"source"`
	Availability AvailabilityConfig `yaml:"availability"`
	Codec        string             `yaml:"codec,omitempty"`
	Log          LogConfig          `yaml:"log"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// UpdatesConfig configures the location update subscription.
type UpdatesConfig struct {
	IntervalMs        int64  `yaml:"interval_ms,omitempty"`
	FastestIntervalMs int64  `yaml:"fastest_interval_ms,omitempty"`
	Priority          string `yaml:"priority,omitempty"`
}

// PermissionsConfig configures the required set and the terminal host's
// initial grants.
type PermissionsConfig struct {
	Required  []string `yaml:"required,omitempty"`
	Granted   []string `yaml:"granted,omitempty"`
	Guard     string   `yaml:"guard,omitempty"`
	Rationale string   `yaml:"rationale,omitempty"`
}

// SourceConfig selects and configures the location provider.
type SourceConfig struct {
	Kind   string       `yaml:"kind,omitempty"`
	Order  []string     `yaml:"order,omitempty"`
	NMEA   NMEAConfig   `yaml:"nmea"`
	Google GoogleConfig `yaml:"google"`
	Static StaticConfig `yaml:"static"`
}

// NMEAConfig configures a serial GPS receiver.
type NMEAConfig struct {
	Port          string `yaml:"port,omitempty"`
	Baud          int    `yaml:"baud,omitempty"`
	ReadTimeoutMs int64  `yaml:"read_timeout_ms,omitempty"`
}

// GoogleConfig configures the Google Geolocation API.
type GoogleConfig struct {
	APIKey   string `yaml:"api_key,omitempty"`
	WiFiScan bool   `yaml:"wifi_scan,omitempty"`
}

// StaticConfig is a fixed position.
type StaticConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Accuracy  float64 `yaml:"accuracy,omitempty"`
}

// AvailabilityConfig forces the host's availability answer. Nil Code
// derives it from the source configuration.
type AvailabilityConfig struct {
	Code *int `yaml:"code,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Path        string
	ModulePath  string
	AppName     string
	AppID       string
	Request     platform.LocationRequest
	Required    []platform.PermissionID
	Granted     []platform.PermissionID
	Guard       flow.GuardMode
	Rationale   string
	Source      SourceConfig
	Unavailable *platform.AvailabilityCode
	Codec       string
	LogLevel    zerolog.Level
	Verbose     bool
}

// LoadOptional reads the file at path if present.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	return &cfg, nil
}

// Resolve loads path (if present) and resolves defaults.
func Resolve(path string) (*Resolved, error) {
	cfg, err := LoadOptional(path)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(path)
}

// Resolve fills in defaults and validates cfg. path locates the enclosing
// Go module, which supplies the default app name and ID.
func (cfg *Config) Resolve(path string) (*Resolved, error) {
	dir := filepath.Dir(path)
	modPath := ""
	if root, err := FindModuleRoot(dir); err == nil {
		modPath, _ = modulePath(root)
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modPath, dir)
	}
	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modPath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	req, err := cfg.Updates.request()
	if err != nil {
		return nil, err
	}

	required, err := permissionList("permissions.required", cfg.Permissions.Required)
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		required = flow.DefaultPermissions()
	}
	granted, err := permissionList("permissions.granted", cfg.Permissions.Granted)
	if err != nil {
		return nil, err
	}

	guard, err := ParseGuard(cfg.Permissions.Guard)
	if err != nil {
		return nil, err
	}

	rationale := strings.TrimSpace(cfg.Permissions.Rationale)
	if rationale == "" {
		rationale = flow.DefaultRationaleMessage
	}

	src := cfg.Source
	src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
	if src.Kind == "" {
		src.Kind = SourceStatic
	}
	if err := src.validate(); err != nil {
		return nil, err
	}

	codec := strings.ToLower(strings.TrimSpace(cfg.Codec))
	switch codec {
	case "":
		codec = "json"
	case "json", "cbor":
	default:
		return nil, fmt.Errorf("codec must be json or cbor (got %q)", cfg.Codec)
	}

	level := zerolog.InfoLevel
	if s := strings.TrimSpace(cfg.Log.Level); s != "" {
		level, err = zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	var unavailable *platform.AvailabilityCode
	if cfg.Availability.Code != nil {
		code := platform.AvailabilityCode(*cfg.Availability.Code)
		unavailable = &code
	}

	return &Resolved{
		Path:        path,
		ModulePath:  modPath,
		AppName:     appName,
		AppID:       appID,
		Request:     req,
		Required:    required,
		Granted:     granted,
		Guard:       guard,
		Rationale:   rationale,
		Source:      src,
		Unavailable: unavailable,
		Codec:       codec,
		LogLevel:    level,
		Verbose:     cfg.Log.Verbose,
	}, nil
}

// FlowOptions returns the flow options described by r.
func (r *Resolved) FlowOptions(logger zerolog.Logger) flow.Options {
	return flow.Options{
		Permissions:      r.Required,
		Request:          r.Request,
		Guard:            r.Guard,
		RationaleMessage: r.Rationale,
		RequestCode:      flow.DefaultRequestCode,
		Logger:           logger,
	}
}

// ParseGuard maps "all" or "any" to a guard mode. Empty selects all.
func ParseGuard(s string) (flow.GuardMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return flow.GuardAll, nil
	case "any":
		return flow.GuardAny, nil
	default:
		return flow.GuardAll, fmt.Errorf("permissions.guard must be all or any (got %q)", s)
	}
}

func (u UpdatesConfig) request() (platform.LocationRequest, error) {
	req := platform.DefaultLocationRequest()
	if u.IntervalMs < 0 || u.FastestIntervalMs < 0 {
		return req, fmt.Errorf("updates intervals must not be negative")
	}
	if u.IntervalMs > 0 {
		req.IntervalMs = u.IntervalMs
	}
	if u.FastestIntervalMs > 0 {
		req.FastestIntervalMs = u.FastestIntervalMs
	}
	if req.FastestIntervalMs > req.IntervalMs {
		req.FastestIntervalMs = req.IntervalMs
	}
	p, err := platform.ParsePriority(strings.ToLower(strings.TrimSpace(u.Priority)))
	if err != nil {
		return req, fmt.Errorf("updates.priority: %w", err)
	}
	req.Priority = p
	return req, nil
}

// permissionList expands short names ("fine", "coarse") and checks that
// every entry looks like a permission identifier.
func permissionList(field string, names []string) ([]platform.PermissionID, error) {
	var out []platform.PermissionID
	for _, name := range names {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "fine":
			out = append(out, platform.AccessFineLocation)
			continue
		case "coarse":
			out = append(out, platform.AccessCoarseLocation)
			continue
		}
		if name == "" || strings.ContainsAny(name, " \t") || !strings.Contains(name, ".") {
			return nil, fmt.Errorf("%s: invalid permission %q", field, name)
		}
		out = append(out, platform.PermissionID(name))
	}
	return out, nil
}

func (s SourceConfig) validate() error {
	switch s.Kind {
	case SourceStatic, SourceNMEA, SourceGoogle:
		return nil
	case SourceChain:
		if len(s.Order) == 0 {
			return fmt.Errorf("source.order is required for a chain source")
		}
		for _, k := range s.Order {
			switch k {
			case SourceStatic, SourceNMEA, SourceGoogle:
			default:
				return fmt.Errorf("source.order: unknown source %q", k)
			}
		}
		return nil
	default:
		return fmt.Errorf("source.kind must be static, nmea, google or chain (got %q)", s.Kind)
	}
}

// Configured reports whether the selected source has what it needs to
// run: a port for nmea, an API key for google.
func (s SourceConfig) Configured() bool {
	switch s.Kind {
	case SourceNMEA:
		return s.NMEA.Port != ""
	case SourceGoogle:
		return s.Google.APIKey != ""
	case SourceChain:
		for _, k := range s.Order {
			if (SourceConfig{Kind: k, NMEA: s.NMEA, Google: s.Google, Static: s.Static}).Configured() {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Provider builds the location provider for s.
func (s SourceConfig) Provider() (sources.Provider, error) {
	switch s.Kind {
	case SourceNMEA:
		return &sources.NMEASerial{
			Port:        s.NMEA.Port,
			Baud:        s.NMEA.Baud,
			ReadTimeout: time.Duration(s.NMEA.ReadTimeoutMs) * time.Millisecond,
		}, nil
	case SourceGoogle:
		var opts []sources.GoogleOption
		if s.Google.WiFiScan {
			opts = append(opts, sources.WithWiFiScan())
		}
		return sources.NewGoogleGeolocation(s.Google.APIKey, nil, opts...)
	case SourceChain:
		var chain sources.Chain
		for _, k := range s.Order {
			sub := SourceConfig{Kind: k, NMEA: s.NMEA, Google: s.Google, Static: s.Static}
			if !sub.Configured() {
				continue
			}
			p, err := sub.Provider()
			if err != nil {
				return nil, err
			}
			chain = append(chain, p)
		}
		return chain, nil
	default:
		return sources.Static{
			Latitude:  s.Static.Latitude,
			Longitude: s.Static.Longitude,
			Accuracy:  s.Static.Accuracy,
		}, nil
	}
}

// FindModuleRoot walks up from dir to find go.mod.
func FindModuleRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "locate"
	}
	return base
}

func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(appName, false))
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment, false)
	}
	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string, allowLeadingDigit bool) string {
	var out []rune
	for _, r := range strings.TrimSpace(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	if len(out) == 0 {
		out = []rune("app")
	}
	if out[0] == '_' {
		out = out[1:]
		if len(out) == 0 {
			out = []rune("app")
		}
	}
	if !allowLeadingDigit && out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}
	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	for _, segment := range strings.Split(appID, ".") {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		if segment[0] == '_' {
			return fmt.Errorf("app.id segments cannot start with '_' (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
