package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}

	// --config 显式给出时必须存在，即使 CLI 给了源目录。
	_, err = LoadEffective(cwd, CLIArgs{ConfigPath: "otro.yaml", Sources: []string{"a"}})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_ConfigMissingSources(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("user:\n  author: Ana\n"))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingSources {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingSources, err, Code(err))
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"yaml 语法":    "sources: [a\n",
		"未知字段":       "sourcez: [a]\n",
		"timeout":    "sources: [a]\nengine:\n  timeout: pronto\n",
		"suffix 分隔符": "sources: [a]\ncopy_options:\n  copy_suffix: \"/x\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))
			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Sources: []string{"cursos"}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("没有配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	if want := []string{filepath.Join(cwd, "cursos")}; !reflect.DeepEqual(eff.Sources, want) {
		t.Fatalf("sources 不符合预期：got=%v want=%v", eff.Sources, want)
	}
	if eff.Apply || eff.AutoRename {
		t.Fatalf("apply/auto_rename 默认应为 false：%+v", eff)
	}
	if !eff.RespectStructure || !eff.CopyAttachments || !eff.SaveModified || !eff.CopyAsPDF {
		t.Fatalf("复制选项默认应全部打开：%+v", eff)
	}
	if eff.Header != (HeaderToggles{Logo: true, FolderCode: true, Line: true}) ||
		eff.Footer != (FooterToggles{Line: true, Author: true, PageNumber: true}) {
		t.Fatalf("页眉页脚默认应全部打开：%+v %+v", eff.Header, eff.Footer)
	}
	if want := []string{".docx"}; !reflect.DeepEqual(eff.Extensions, want) {
		t.Fatalf("默认只处理 .docx：%v", eff.Extensions)
	}
	if eff.CopySuffix != DefaultCopySuffix || eff.ConvertTimeout != DefaultConvertTimeout {
		t.Fatalf("默认值不符合预期：suffix=%q timeout=%v", eff.CopySuffix, eff.ConvertTimeout)
	}
	if eff.Publish.Enabled() {
		t.Fatalf("默认不应启用发布")
	}
}

func TestLoadEffective_FileValuesAndRelativePaths(t *testing.T) {
	cwd := t.TempDir()
	cfgDir := filepath.Join(cwd, "conf")
	writeFile(t, filepath.Join(cfgDir, "curso.yaml"), []byte(`
user:
  author: "  Ana  "
  logo: logo.png
  destination: ../salida
header_footer:
  logo: false
  page_number: false
copy_options:
  copy_as_pdf: false
  auto_rename: true
  copy_suffix: " (mod)"
process_extensions:
  docx: true
  docm: true
exclusions:
  no_process: "borrador, plantilla"
  no_copy: |
    solucion
    privado
sources:
  - ../Modulo1
  - ../Modulo1
  - /abs/Modulo2
engine:
  soffice: /opt/lo/soffice
  timeout: 30s
`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: filepath.Join("conf", "curso.yaml")})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if want := []string{filepath.Join(cwd, "Modulo1"), filepath.Clean("/abs/Modulo2")}; !reflect.DeepEqual(eff.Sources, want) {
		t.Fatalf("sources 不符合预期：got=%v want=%v", eff.Sources, want)
	}
	if eff.Destination != filepath.Join(cwd, "salida") {
		t.Fatalf("destination 应相对配置文件目录解析，实际=%q", eff.Destination)
	}
	if eff.LogoPath != filepath.Join(cfgDir, "logo.png") {
		t.Fatalf("logo 应相对配置文件目录解析，实际=%q", eff.LogoPath)
	}
	if eff.Author != "Ana" {
		t.Fatalf("author 应去掉首尾空白，实际=%q", eff.Author)
	}
	if eff.Header.Logo || !eff.Header.FolderCode || eff.Footer.PageNumber {
		t.Fatalf("header_footer 未生效：%+v %+v", eff.Header, eff.Footer)
	}
	if eff.CopyAsPDF || !eff.AutoRename || eff.CopySuffix != " (mod)" {
		t.Fatalf("copy_options 未生效：%+v", eff)
	}
	if want := []string{".docx", ".docm"}; !reflect.DeepEqual(eff.Extensions, want) {
		t.Fatalf("extensions 不符合预期：%v", eff.Extensions)
	}
	if want := []string{"borrador", "plantilla"}; !reflect.DeepEqual(eff.ExcludeProcess.Tokens(), want) {
		t.Fatalf("no_process 不符合预期：%v", eff.ExcludeProcess.Tokens())
	}
	if !eff.ExcludeCopy.Match("Privado.zip") {
		t.Fatalf("no_copy 多行写法应生效：%v", eff.ExcludeCopy.Tokens())
	}
	if eff.Soffice != "/opt/lo/soffice" || eff.ConvertTimeout != 30*time.Second {
		t.Fatalf("engine 未生效：%q %v", eff.Soffice, eff.ConvertTimeout)
	}
}

func TestLoadEffective_CLIOverrides(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
apply: true
sources: [a]
user:
  destination: d
copy_options:
  auto_rename: true
`))

	eff, err := LoadEffective(cwd, CLIArgs{
		Sources:   []string{"b"},
		Dest:      "e",
		DestSet:   true,
		Apply:     false,
		ApplySet:  true, // --apply=false
		Rename:    false,
		RenameSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Apply || eff.AutoRename {
		t.Fatalf("CLI 应覆盖 apply/auto_rename：%+v", eff)
	}
	if want := []string{filepath.Join(cwd, "b")}; !reflect.DeepEqual(eff.Sources, want) {
		t.Fatalf("CLI sources 应整体覆盖：%v", eff.Sources)
	}
	if eff.Destination != filepath.Join(cwd, "e") {
		t.Fatalf("CLI dest 应覆盖：%q", eff.Destination)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("CLI 给了源目录时仍应读取可选配置文件：%q", eff.ConfigPath)
	}
}

func TestLoadEffective_PublishEnvExpansion(t *testing.T) {
	t.Setenv("AUTOPDF_TEST_AK", "clave")
	t.Setenv("AUTOPDF_TEST_SK", "secreto")

	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
sources: [a]
publish:
  endpoint: localhost:9000
  bucket: cursos
  prefix: "2026/"
  access_key: ${AUTOPDF_TEST_AK}
  secret_key: ${AUTOPDF_TEST_SK}
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.Publish.Enabled() {
		t.Fatalf("应启用发布：%+v", eff.Publish)
	}
	if eff.Publish.AccessKey != "clave" || eff.Publish.SecretKey != "secreto" {
		t.Fatalf("凭据应展开环境变量：%+v", eff.Publish)
	}
}

func TestPublishTarget_Enabled(t *testing.T) {
	if (PublishTarget{Bucket: "b"}).Enabled() {
		t.Fatalf("缺少 endpoint 时不应启用")
	}
	if (PublishTarget{Endpoint: " ", Bucket: "b"}).Enabled() {
		t.Fatalf("空白 endpoint 不应启用")
	}
	if !(PublishTarget{Endpoint: "e", Bucket: "b"}).Enabled() {
		t.Fatalf("endpoint 与 bucket 都有时应启用")
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
