package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform global undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile reads and parses the config file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path is a directory: %s", path)
	}
	if info.Size() > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, maximum is %d", path, info.Size(), MaxConfigSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	if len(luaCode) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%d bytes, maximum is %d", len(luaCode), MaxConfigSize),
		}
	}

	L := newSandboxedVM()
	defer L.Close()

	evalCtx, cancel := context.WithTimeout(ctx, ParseTimeout)
	defer cancel()
	L.SetContext(evalCtx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: err.Error()}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	cfg, err := extractConfig(L)
	if err != nil {
		return nil, err
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize applies environment overrides, expands paths and validates.
func finalize(cfg *Config) error {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.Paths.DataDir = dir
	}

	var err error
	if cfg.Paths.DataDir, err = ExpandHome(cfg.Paths.DataDir); err != nil {
		return err
	}
	if cfg.Paths.UserPackages, err = ExpandHome(cfg.Paths.UserPackages); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}
	return nil
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global crxkeep table over the defaults.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalCrxkeep)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'crxkeep' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	cfg := Defaults()
	table := root.(*lua.LTable)

	sections := []struct {
		name    string
		extract func(*lua.LTable, *Config) error
	}{
		{luaFieldPackage, extractPackage},
		{luaFieldPaths, extractPaths},
		{luaFieldUpdate, extractUpdate},
		{luaFieldSession, extractSession},
		{luaFieldBrowser, extractBrowser},
		{luaFieldLog, extractLog},
	}
	for _, s := range sections {
		sub, err := tableField(table, s.name, s.name)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue
		}
		if err := s.extract(sub, cfg); err != nil {
			return nil, err
		}
	}

	patches, err := tableField(table, luaFieldPatches, luaFieldPatches)
	if err != nil {
		return nil, err
	}
	if patches != nil {
		rules, err := extractPatches(patches)
		if err != nil {
			return nil, err
		}
		cfg.Patches = rules
	}

	return cfg, nil
}

func extractPackage(t *lua.LTable, cfg *Config) error {
	return firstErr(
		stringField(t, luaFieldID, "package.id", &cfg.Package.ID),
		stringField(t, luaFieldBaseURL, "package.base_url", &cfg.Package.BaseURL),
		stringField(t, luaFieldEntryPath, "package.entry_path", &cfg.Package.EntryPath),
		stringField(t, luaFieldScheme, "package.scheme", &cfg.Package.Scheme),
	)
}

func extractPaths(t *lua.LTable, cfg *Config) error {
	return firstErr(
		stringField(t, luaFieldDataDir, "paths.data_dir", &cfg.Paths.DataDir),
		stringField(t, luaFieldUserPackages, "paths.user_packages", &cfg.Paths.UserPackages),
	)
}

func extractUpdate(t *lua.LTable, cfg *Config) error {
	return firstErr(
		intField(t, luaFieldAttempts, "update.attempts", &cfg.Update.Attempts),
		secondsField(t, luaFieldDelay, "update.delay_seconds", &cfg.Update.Delay),
		secondsField(t, luaFieldCheckTimeout, "update.check_timeout_seconds", &cfg.Update.CheckTimeout),
		secondsField(t, luaFieldDownloadTimeout, "update.download_timeout_seconds", &cfg.Update.DownloadTimeout),
		intField(t, luaFieldMaxRedirects, "update.max_redirects", &cfg.Update.MaxRedirects),
		stringField(t, luaFieldPlatform, "update.platform", &cfg.Update.Platform),
	)
}

func extractSession(t *lua.LTable, cfg *Config) error {
	origins, err := tableField(t, luaFieldOrigins, "session.origins")
	if err != nil {
		return err
	}
	if origins != nil {
		cfg.Session.Origins = nil
		var bad error
		origins.ForEach(func(key, value lua.LValue) {
			// nil entries come from platform conditionals
			if value.Type() == lua.LTNil || bad != nil {
				return
			}
			if value.Type() != lua.LTString {
				bad = typeError("session.origins", "string", value)
				return
			}
			cfg.Session.Origins = append(cfg.Session.Origins, value.String())
		})
		if bad != nil {
			return bad
		}
	}

	delays, err := tableField(t, luaFieldDelays, "session.delays")
	if err != nil {
		return err
	}
	if delays != nil {
		cfg.Session.Delays = []time.Duration{}
		for i := 1; i <= delays.Len(); i++ {
			v := delays.RawGetInt(i)
			if v.Type() != lua.LTNumber {
				return typeError(fmt.Sprintf("session.delays[%d]", i), "number", v)
			}
			cfg.Session.Delays = append(cfg.Session.Delays, seconds(float64(v.(lua.LNumber))))
		}
	}

	v := t.RawGetString(luaFieldTTLDays)
	switch v.Type() {
	case lua.LTNil:
	case lua.LTNumber:
		cfg.Session.TTL = time.Duration(float64(v.(lua.LNumber)) * float64(24*time.Hour))
	default:
		return typeError("session.ttl_days", "number", v)
	}
	return nil
}

func extractBrowser(t *lua.LTable, cfg *Config) error {
	return firstErr(
		boolField(t, luaFieldHeadless, "browser.headless", &cfg.Browser.Headless),
		stringField(t, luaFieldBin, "browser.bin", &cfg.Browser.Bin),
		stringField(t, luaFieldRemoteURL, "browser.remote_url", &cfg.Browser.RemoteURL),
	)
}

func extractLog(t *lua.LTable, cfg *Config) error {
	return firstErr(
		stringField(t, luaFieldLevel, "log.level", &cfg.Log.Level),
		boolField(t, luaFieldFile, "log.file", &cfg.Log.File),
	)
}

// extractPatches returns a non-nil slice, so an empty table disables patching.
func extractPatches(t *lua.LTable) ([]install.PatchRule, error) {
	rules := []install.PatchRule{}
	for i := 1; i <= t.Len(); i++ {
		field := fmt.Sprintf("patches[%d]", i)
		v := t.RawGetInt(i)
		entry, ok := v.(*lua.LTable)
		if !ok {
			return nil, typeError(field, "table", v)
		}
		var rule install.PatchRule
		if err := firstErr(
			stringField(entry, luaFieldFile, field+".file", &rule.File),
			stringField(entry, luaFieldFind, field+".find", &rule.Find),
			stringField(entry, luaFieldReplace, field+".replace", &rule.Replace),
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func tableField(t *lua.LTable, key, field string) (*lua.LTable, error) {
	v := t.RawGetString(key)
	switch v := v.(type) {
	case *lua.LTable:
		return v, nil
	default:
		if v.Type() == lua.LTNil {
			return nil, nil
		}
		return nil, typeError(field, "table", v)
	}
}

func stringField(t *lua.LTable, key, field string, dst *string) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTString:
		*dst = v.String()
		return nil
	default:
		return typeError(field, "string", v)
	}
}

func boolField(t *lua.LTable, key, field string, dst *bool) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTBool:
		*dst = bool(v.(lua.LBool))
		return nil
	default:
		return typeError(field, "boolean", v)
	}
}

func intField(t *lua.LTable, key, field string, dst *int) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTNumber:
		n := float64(v.(lua.LNumber))
		if n != float64(int(n)) {
			return &ParseError{Message: "invalid value for " + field, Detail: fmt.Sprintf("expected integer, got %v", n)}
		}
		*dst = int(n)
		return nil
	default:
		return typeError(field, "number", v)
	}
}

func secondsField(t *lua.LTable, key, field string, dst *time.Duration) error {
	v := t.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTNumber:
		*dst = seconds(float64(v.(lua.LNumber)))
		return nil
	default:
		return typeError(field, "number", v)
	}
}

func seconds(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

func typeError(field, want string, got lua.LValue) error {
	return &ParseError{
		Message: "invalid value for " + field,
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
