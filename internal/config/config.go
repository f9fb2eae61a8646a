package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/source/execsrc"
)

const (
	// ErrCodeNotFound 表示既没有 --path 也没有 --config，且 cwd 下没有配置文件。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示最终没有得到 library_path。
	ErrCodeMissingPath = "config_missing_path"
)

const (
	JSONName = "avmeta.json"
	TOMLName = "avmeta.toml"

	DefaultSourceTimeout = 30 * time.Second
	DefaultItemDelay     = 1500 * time.Millisecond
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// BuiltinSources 是内置来源（同时实现影片与演员契约）。
var BuiltinSources = []string{"javbus", "javdb"}

// CLIArgs 是 CLI 暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --interactive=false 必须能覆盖 config.interactive=true。
type CLIArgs struct {
	Path       string
	ConfigFile string
	CacheDir   string

	Interactive    bool
	InteractiveSet bool

	ScrapeCast    bool
	ScrapeCastSet bool

	LogLevel string
}

// FileConfig 对应 avmeta.json / avmeta.toml 的解析结构。
type FileConfig struct {
	LibraryPath          string              `json:"library_path" toml:"library_path"`
	CacheDir             string              `json:"cache_dir" toml:"cache_dir"`
	Sources              SourcesConfig       `json:"sources" toml:"sources"`
	FieldPriority        map[string][]string `json:"field_priority" toml:"field_priority"`
	SourceTimeoutSeconds *int                `json:"source_timeout_seconds" toml:"source_timeout_seconds"`
	ItemDelayMs          *int                `json:"item_delay_ms" toml:"item_delay_ms"`
	SessionLimit         int                 `json:"session_limit" toml:"session_limit"`
	ScrapeCast           *bool               `json:"scrape_cast" toml:"scrape_cast"`
	Interactive          bool                `json:"interactive" toml:"interactive"`
	ConfirmURL           string              `json:"confirm_url" toml:"confirm_url"`
	Proxy                *ProxyConfig        `json:"proxy" toml:"proxy"`
	ImageProxy           bool                `json:"image_proxy" toml:"image_proxy"`
	JavDBBaseURL         string              `json:"javdb_base_url" toml:"javdb_base_url"`
	ExecSources          []execsrc.Config    `json:"exec_sources" toml:"exec_sources"`
	Log                  LogConfig           `json:"log" toml:"log"`
}

type SourcesConfig struct {
	Movie []string `json:"movie" toml:"movie"`
	Actor []string `json:"actor" toml:"actor"`
}

type ProxyConfig struct {
	URL string `json:"url" toml:"url"`
}

type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；没有读取任何文件时为空。
	ConfigPath string

	LibraryPath string
	CacheDir    string

	MovieSources  []string
	ActorSources  []string
	FieldPriority map[string][]string

	SourceTimeout time.Duration
	ItemDelay     time.Duration
	SessionLimit  int

	ScrapeCast  bool
	Interactive bool
	// ConfirmURL 非空时，交互确认走 WebSocket 而不是终端。
	ConfirmURL string

	ProxyURL   string
	ImageProxy bool

	// JavDBBaseURL 允许在 javdb.com 不可达/被阻断时切换到可用镜像域名（可选）。
	JavDBBaseURL string

	ExecSources []execsrc.Config

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 library_path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：读取该文件（必选），按扩展名 .toml 决定格式，其余按 JSON
// 2) CLI 提供 --path：尝试读取 <path>/avmeta.json，其次 <path>/avmeta.toml（可选）
// 3) 都没有：必须读取 <cwd>/avmeta.json 或 <cwd>/avmeta.toml，且其中必须包含 library_path
//
// 覆盖优先级（固定）：CLI > 配置文件 > 默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		fc      FileConfig
		cfgPath string
		exists  bool
	)
	switch {
	case strings.TrimSpace(cli.ConfigFile) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	case strings.TrimSpace(cli.Path) != "":
		cfgPath, fc, exists, err = discover(absCleanFrom(cwdAbs, cli.Path))
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
	default:
		cfgPath, fc, exists, err = discover(cwdAbs)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: filepath.Join(cwdAbs, JSONName), Err: os.ErrNotExist}
		}
	}

	// 配置文件里的相对路径相对于配置文件所在目录。
	base := cwdAbs
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}

	libPath := ""
	if strings.TrimSpace(cli.Path) != "" {
		libPath = absCleanFrom(cwdAbs, cli.Path)
	} else if strings.TrimSpace(fc.LibraryPath) != "" {
		libPath = absCleanFrom(base, fc.LibraryPath)
	}
	if libPath == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	eff, err := mergeConfig(libPath, base, cwdAbs, cli, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func discover(dir string) (string, FileConfig, bool, error) {
	for _, name := range []string{JSONName, TOMLName} {
		p := filepath.Join(dir, name)
		fc, exists, err := readFileConfig(p)
		if err != nil {
			return p, FileConfig{}, true, err
		}
		if exists {
			return p, fc, true, nil
		}
	}
	return "", FileConfig{}, false, nil
}

func mergeConfig(libPath, base, cwd string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		LibraryPath:   libPath,
		CacheDir:      filepath.Join(libPath, "cache"),
		SourceTimeout: DefaultSourceTimeout,
		ItemDelay:     DefaultItemDelay,
		ScrapeCast:    true,
		Interactive:   fc.Interactive,
		ImageProxy:    fc.ImageProxy,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
	}

	switch {
	case strings.TrimSpace(cli.CacheDir) != "":
		eff.CacheDir = absCleanFrom(cwd, cli.CacheDir)
	case strings.TrimSpace(fc.CacheDir) != "":
		eff.CacheDir = absCleanFrom(base, fc.CacheDir)
	}

	if fc.SourceTimeoutSeconds != nil {
		if *fc.SourceTimeoutSeconds <= 0 {
			return eff, fmt.Errorf("source_timeout_seconds 必须为正数，实际 %d", *fc.SourceTimeoutSeconds)
		}
		eff.SourceTimeout = time.Duration(*fc.SourceTimeoutSeconds) * time.Second
	}
	if fc.ItemDelayMs != nil {
		if *fc.ItemDelayMs < 0 {
			return eff, fmt.Errorf("item_delay_ms 不能为负数，实际 %d", *fc.ItemDelayMs)
		}
		eff.ItemDelay = time.Duration(*fc.ItemDelayMs) * time.Millisecond
	}
	if fc.SessionLimit < 0 {
		return eff, fmt.Errorf("session_limit 不能为负数，实际 %d", fc.SessionLimit)
	}
	eff.SessionLimit = fc.SessionLimit

	if fc.ScrapeCast != nil {
		eff.ScrapeCast = *fc.ScrapeCast
	}
	if cli.ScrapeCastSet {
		eff.ScrapeCast = cli.ScrapeCast
	}
	if cli.InteractiveSet {
		eff.Interactive = cli.Interactive
	}

	if u := strings.TrimSpace(fc.ConfirmURL); u != "" {
		pu, err := url.Parse(u)
		if err != nil || (pu.Scheme != "ws" && pu.Scheme != "wss") || pu.Host == "" {
			return eff, fmt.Errorf("confirm_url 必须是 ws/wss 地址：%q", u)
		}
		eff.ConfirmURL = u
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		if _, err := url.Parse(eff.ProxyURL); err != nil {
			return eff, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	if fc.ImageProxy && eff.ProxyURL == "" {
		return eff, fmt.Errorf("image_proxy=true 但 proxy.url 为空")
	}

	eff.JavDBBaseURL = strings.TrimSpace(fc.JavDBBaseURL)
	if eff.JavDBBaseURL != "" {
		u, err := url.Parse(eff.JavDBBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return eff, fmt.Errorf("javdb_base_url 无效：%q", eff.JavDBBaseURL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return eff, fmt.Errorf("javdb_base_url 必须是 http/https：%q", eff.JavDBBaseURL)
		}
	}

	movieKnown, actorKnown, err := knownSources(fc.ExecSources)
	if err != nil {
		return eff, err
	}
	eff.ExecSources = append([]execsrc.Config(nil), fc.ExecSources...)

	if eff.MovieSources, err = sourceList("sources.movie", fc.Sources.Movie, movieKnown); err != nil {
		return eff, err
	}
	if eff.ActorSources, err = sourceList("sources.actor", fc.Sources.Actor, actorKnown); err != nil {
		return eff, err
	}

	if len(fc.FieldPriority) > 0 {
		eff.FieldPriority = make(map[string][]string, len(fc.FieldPriority))
		for field, list := range fc.FieldPriority {
			if !merge.IsMovieField(field) {
				return eff, fmt.Errorf("field_priority 包含未知字段 %q", field)
			}
			if len(list) == 0 {
				continue
			}
			names, err := sourceList("field_priority."+field, list, movieKnown)
			if err != nil {
				return eff, err
			}
			eff.FieldPriority[field] = names
		}
	}

	if l := strings.ToLower(strings.TrimSpace(fc.Log.Level)); l != "" {
		eff.LogLevel = l
	}
	if l := strings.ToLower(strings.TrimSpace(cli.LogLevel)); l != "" {
		eff.LogLevel = l
	}
	switch eff.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return eff, fmt.Errorf("log.level 只能是 debug/info/warn/error，实际 %q", eff.LogLevel)
	}
	if f := strings.ToLower(strings.TrimSpace(fc.Log.Format)); f != "" {
		eff.LogFormat = f
	}
	if eff.LogFormat != "json" && eff.LogFormat != "console" {
		return eff, fmt.Errorf("log.format 只能是 json 或 console，实际 %q", eff.LogFormat)
	}
	return eff, nil
}

// knownSources 返回影片/演员两类可用来源名集合（内置 + exec_sources）。
func knownSources(execs []execsrc.Config) (movie, actor map[string]bool, err error) {
	movie = make(map[string]bool)
	actor = make(map[string]bool)
	for _, b := range BuiltinSources {
		movie[b], actor[b] = true, true
	}
	seen := make(map[string]bool, len(execs))
	for _, cfg := range execs {
		s, err := execsrc.New(cfg, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		name := s.Name()
		if seen[name] || (movie[name] && actor[name]) {
			return nil, nil, fmt.Errorf("exec_sources 名称重复或与内置来源冲突：%q", name)
		}
		seen[name] = true
		if s.Entity() == execsrc.EntityMovie {
			movie[name] = true
		} else {
			actor[name] = true
		}
	}
	return movie, actor, nil
}

// sourceList 规范化来源列表：小写、去空白、拒绝重复与未知名称。空列表回退为内置来源。
func sourceList(key string, in []string, known map[string]bool) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), BuiltinSources...), nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		n := strings.ToLower(strings.TrimSpace(raw))
		if n == "" {
			return nil, fmt.Errorf("%s 包含空来源名", key)
		}
		if !known[n] {
			return nil, fmt.Errorf("%s 包含未知来源 %q", key, raw)
		}
		if seen[n] {
			return nil, fmt.Errorf("%s 包含重复来源 %q", key, raw)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件；.toml 走 go-toml，其余按 JSON。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(b, &fc)
	} else {
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
