package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/autopdf/internal/exclude"
)

const (
	// ErrCodeNotFound 表示需要配置文件但没有找到（--config 指向的文件不存在，或无参运行且 cwd 下没有 autopdf.yaml）。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingSources 表示 CLI 与配置文件都没有给出任何源目录。
	ErrCodeMissingSources = "config_missing_sources"
)

const (
	// FileName 是默认配置文件名（在 cwd 下查找）。
	FileName = "autopdf.yaml"
	// DefaultCopySuffix 是修改后 Word 副本的默认后缀。
	DefaultCopySuffix = " - COPIA"
	// DefaultConvertTimeout 是单次 PDF 转换的默认上限。
	DefaultConvertTimeout = 2 * time.Minute
)

// CLIArgs 是命令行给出的入口参数，并保留“是否显式指定”的信息，
// 这样 --apply=false 才能覆盖配置里的 apply: true。
type CLIArgs struct {
	ConfigPath string
	Sources    []string

	Dest    string
	DestSet bool

	Apply    bool
	ApplySet bool

	Rename    bool
	RenameSet bool
}

// FileConfig 对应 autopdf.yaml 的解析结构。指针字段用于区分“未写”和“写了 false”。
type FileConfig struct {
	User              UserSection         `yaml:"user"`
	HeaderFooter      HeaderFooterSection `yaml:"header_footer"`
	CopyOptions       CopyOptionsSection  `yaml:"copy_options"`
	ProcessExtensions ExtensionsSection   `yaml:"process_extensions"`
	Exclusions        ExclusionsSection   `yaml:"exclusions"`
	Sources           []string            `yaml:"sources"`
	Apply             *bool               `yaml:"apply"`
	Engine            EngineSection       `yaml:"engine"`
	Publish           PublishSection      `yaml:"publish"`
}

type UserSection struct {
	Author      string `yaml:"author"`
	Logo        string `yaml:"logo"`
	Destination string `yaml:"destination"`
}

type HeaderFooterSection struct {
	Logo       *bool `yaml:"logo"`
	FolderCode *bool `yaml:"folder_code"`
	HeaderLine *bool `yaml:"header_line"`
	FooterLine *bool `yaml:"footer_line"`
	Author     *bool `yaml:"author"`
	PageNumber *bool `yaml:"page_number"`
}

type CopyOptionsSection struct {
	RespectStructure *bool   `yaml:"respect_structure"`
	CopyAttachments  *bool   `yaml:"copy_attachments"`
	SaveModified     *bool   `yaml:"save_modified"`
	CopyAsPDF        *bool   `yaml:"copy_as_pdf"`
	AutoRename       *bool   `yaml:"auto_rename"`
	CopySuffix       *string `yaml:"copy_suffix"`
}

type ExtensionsSection struct {
	Docx *bool `yaml:"docx"`
	Docm *bool `yaml:"docm"`
}

// ExclusionsSection 里的值是逗号/换行分隔的片段列表。
type ExclusionsSection struct {
	NoProcess string `yaml:"no_process"`
	NoCopy    string `yaml:"no_copy"`
}

type EngineSection struct {
	Soffice string `yaml:"soffice"`
	Timeout string `yaml:"timeout"` // time.ParseDuration 格式
}

// PublishSection 的凭据字段支持 ${VAR} 环境变量展开。
type PublishSection struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Proxy     string `yaml:"proxy"`
}

type HeaderToggles struct {
	Logo       bool
	FolderCode bool
	Line       bool
}

type FooterToggles struct {
	Line       bool
	Author     bool
	PageNumber bool
}

// EffectiveConfig 是合并并规范化后的最终配置（执行层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；没有读取时为空

	Sources     []string // 绝对路径，保持给出顺序，已去重
	Destination string   // 绝对路径；可能为空（由前置检查报错）
	Apply       bool

	Author   string
	LogoPath string
	Header   HeaderToggles
	Footer   FooterToggles

	RespectStructure bool
	CopyAttachments  bool
	SaveModified     bool
	CopyAsPDF        bool
	AutoRename       bool
	CopySuffix       string

	Extensions     []string // 形如 ".docx"，可能为空（由前置检查报错）
	ExcludeProcess exclude.Set
	ExcludeCopy    exclude.Set

	Soffice        string
	ConvertTimeout time.Duration

	Publish PublishTarget
}

// PublishTarget 是展开环境变量之后的发布目标。
type PublishTarget struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Proxy     string // 可选：显式 HTTP 代理
}

// Enabled 报告是否配置了发布目标（endpoint 与 bucket 都非空）。
func (c PublishTarget) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
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
	case ErrCodeMissingSources:
		if e.Path == "" {
			return fmt.Sprintf("%s：没有给出任何源目录", e.Code)
		}
		return fmt.Sprintf("%s：配置文件 %q 没有 sources，命令行也没有给出源目录", e.Code, e.Path)
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

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) --config 给出：必须存在
// 2) 否则读取 <cwd>/autopdf.yaml：CLI 给了源目录时可选，没给时必选
//
// 覆盖优先级：CLI > 配置文件 > 内置默认。
// 路径解析：CLI 中的相对路径相对 cwd，配置文件中的相对路径相对配置文件所在目录。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := len(cli.Sources) == 0
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cfgPath, cli, fc)
}

func merge(cwdAbs, cfgPath string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}

	// sources：CLI 整体覆盖配置文件（不做合并）。
	var sources []string
	if len(cli.Sources) > 0 {
		sources = absAll(cwdAbs, cli.Sources)
	} else {
		sources = absAll(cfgDir, fc.Sources)
	}
	if len(sources) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingSources, Path: cfgPath}
	}

	dest := absCleanFrom(cfgDir, fc.User.Destination)
	if cli.DestSet {
		dest = absCleanFrom(cwdAbs, cli.Dest)
	}

	apply := boolOr(fc.Apply, false)
	if cli.ApplySet {
		apply = cli.Apply
	}
	autoRename := boolOr(fc.CopyOptions.AutoRename, false)
	if cli.RenameSet {
		autoRename = cli.Rename
	}

	suffix := DefaultCopySuffix
	if fc.CopyOptions.CopySuffix != nil {
		suffix = *fc.CopyOptions.CopySuffix
	}
	if strings.ContainsAny(suffix, `/\`) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("copy_suffix 不能包含路径分隔符：%q", suffix)}
	}

	timeout := DefaultConvertTimeout
	if s := strings.TrimSpace(fc.Engine.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("engine.timeout 无效：%q", s)}
		}
		timeout = d
	}

	var exts []string
	if boolOr(fc.ProcessExtensions.Docx, true) {
		exts = append(exts, ".docx")
	}
	if boolOr(fc.ProcessExtensions.Docm, false) {
		exts = append(exts, ".docm")
	}

	logo := ""
	if strings.TrimSpace(fc.User.Logo) != "" {
		logo = absCleanFrom(cfgDir, fc.User.Logo)
	}

	hf := fc.HeaderFooter
	co := fc.CopyOptions
	pub := fc.Publish
	return EffectiveConfig{
		ConfigPath:  cfgPath,
		Sources:     sources,
		Destination: dest,
		Apply:       apply,

		Author:   strings.TrimSpace(fc.User.Author),
		LogoPath: logo,
		Header: HeaderToggles{
			Logo:       boolOr(hf.Logo, true),
			FolderCode: boolOr(hf.FolderCode, true),
			Line:       boolOr(hf.HeaderLine, true),
		},
		Footer: FooterToggles{
			Line:       boolOr(hf.FooterLine, true),
			Author:     boolOr(hf.Author, true),
			PageNumber: boolOr(hf.PageNumber, true),
		},

		RespectStructure: boolOr(co.RespectStructure, true),
		CopyAttachments:  boolOr(co.CopyAttachments, true),
		SaveModified:     boolOr(co.SaveModified, true),
		CopyAsPDF:        boolOr(co.CopyAsPDF, true),
		AutoRename:       autoRename,
		CopySuffix:       suffix,

		Extensions:     exts,
		ExcludeProcess: exclude.Parse(fc.Exclusions.NoProcess),
		ExcludeCopy:    exclude.Parse(fc.Exclusions.NoCopy),

		Soffice:        strings.TrimSpace(fc.Engine.Soffice),
		ConvertTimeout: timeout,

		Publish: PublishTarget{
			Endpoint:  strings.TrimSpace(os.ExpandEnv(pub.Endpoint)),
			Bucket:    strings.TrimSpace(os.ExpandEnv(pub.Bucket)),
			Prefix:    os.ExpandEnv(pub.Prefix),
			AccessKey: os.ExpandEnv(pub.AccessKey),
			SecretKey: os.ExpandEnv(pub.SecretKey),
			UseSSL:    pub.UseSSL,
			Region:    os.ExpandEnv(pub.Region),
			Proxy:     strings.TrimSpace(os.ExpandEnv(pub.Proxy)),
		},
	}, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// absAll 把路径列表转为绝对路径；去掉空项与重复项，保持原有顺序。
func absAll(base string, ps []string) []string {
	out := make([]string, 0, len(ps))
	seen := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		a := absCleanFrom(base, p)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute；p 为空白时返回 ""。
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

// readFileConfig 读取并解析 YAML 配置文件；未知字段视为错误。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
