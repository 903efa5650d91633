// Package docxengine 是 docx/docm 的文档引擎：
// 用生成的页眉/页脚部件替换文档原有的页眉页脚（logo、代码、分隔线、作者、页码），
// 原生副本直接写回 zip 包，PDF 由无界面的 LibreOffice（soffice --headless --convert-to pdf）转换。
package docxengine

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"

	"github.com/John-Robertt/autopdf/internal/code"
	"github.com/John-Robertt/autopdf/internal/docproc"
	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/infra/fsx"
	"github.com/John-Robertt/autopdf/internal/infra/imgx"
)

const (
	defaultSoffice = "soffice"
	defaultTimeout = 2 * time.Minute
)

type Options struct {
	// Soffice 是 LibreOffice 可执行文件（名字或路径）；空值使用 "soffice"。
	Soffice string
	// NeedPDF 为 true 时 Available 要求能找到 Soffice。
	NeedPDF bool
	// Timeout 是单次 PDF 转换的上限；<=0 使用默认 2 分钟。
	Timeout time.Duration
}

type Engine struct {
	opts Options

	// 通过可替换的函数，让测试不依赖真实的 LibreOffice。
	lookPath func(string) (string, error)
	convert  func(ctx context.Context, soffice, src, outDir string) error

	soffice string // Available 解析后的绝对路径
	tmpDir  string

	// 同一批次的 logo 只读一次。
	logo     *logoImage
	logoPath string
}

var _ docproc.Engine = (*Engine)(nil)

func New(opts Options) *Engine {
	if strings.TrimSpace(opts.Soffice) == "" {
		opts.Soffice = defaultSoffice
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Engine{opts: opts, lookPath: exec.LookPath, convert: runSoffice}
}

func (e *Engine) Name() string { return "docx" }

// Available 在批处理开始前调用一次：需要 PDF 时解析 soffice 路径，并准备转换用的临时目录。
func (e *Engine) Available() error {
	if e.opts.NeedPDF {
		p, err := e.lookPath(e.opts.Soffice)
		if err != nil {
			return fmt.Errorf("%w：找不到 %q：%v", docproc.ErrUnavailable, e.opts.Soffice, err)
		}
		e.soffice = p
	}
	if e.tmpDir == "" {
		dir, err := os.MkdirTemp("", "autopdf-*")
		if err != nil {
			return fmt.Errorf("%w：%v", docproc.ErrUnavailable, err)
		}
		e.tmpDir = dir
	}
	return nil
}

func (e *Engine) Open(path string) (docproc.Document, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	ed := r.Editable()
	return &document{eng: e, src: path, r: r, ed: ed, body: ed.GetContent()}, nil
}

// Quit 清理临时目录。可重复调用。
func (e *Engine) Quit() error {
	e.logo, e.logoPath = nil, ""
	if e.tmpDir == "" {
		return nil
	}
	err := os.RemoveAll(e.tmpDir)
	e.tmpDir = ""
	return err
}

type document struct {
	eng  *Engine
	src  string
	r    *docx.ReplaceDocx
	ed   *docx.Docx
	body string // 原始 word/document.xml

	// 生成的部件；空串表示该部分保持原样。
	header string
	footer string
	logo   *logoImage
}

// ApplyHeader 用新页眉替换文档所有节的页眉。开关全关时页眉被清空。
func (d *document) ApplyHeader(c domain.FolderCode, opts docproc.HeaderOptions) error {
	var logo *logoImage
	if opts.AddLogo {
		l, err := d.eng.loadLogo(opts.LogoPath)
		if err != nil {
			return err
		}
		logo = l
	}
	d.header = headerXML(c, opts, logo)
	d.logo = logo
	return nil
}

// ApplyFooter 用新页脚替换文档所有节的页脚。开关全关时页脚被清空。
func (d *document) ApplyFooter(opts docproc.FooterOptions) error {
	d.footer = footerXML(opts)
	return nil
}

func (d *document) Export(target string, format docproc.Format) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if format == docproc.FormatNative {
		return d.writeFile(target)
	}
	return d.exportPDF(target)
}

func (d *document) writeFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.writePackage(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// writePackage 先由 docx 库写出改好 document.xml 的包，再补上新部件、关系与内容类型。
//
// 约束：
// - 源包的其它部件原样保留（宏、样式、图片）
// - 上一次处理留下的同名部件会被替换，不会重复
func (d *document) writePackage(w io.Writer) error {
	hasHeader, hasFooter := d.header != "", d.footer != ""

	body, err := rewriteSections(d.body, hasHeader, hasFooter)
	if err != nil {
		return err
	}
	d.ed.SetContent(body)

	var base bytes.Buffer
	if err := d.ed.Write(&base); err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(base.Bytes()), int64(base.Len()))
	if err != nil {
		return err
	}

	type part struct {
		name string
		data []byte
	}
	var added []part
	if hasHeader {
		added = append(added, part{HeaderPart, []byte(d.header)})
		if d.logo != nil {
			added = append(added,
				part{headerRelsPart, []byte(headerRelsXML(d.logo))},
				part{d.logo.part(), d.logo.data},
			)
		}
	}
	if hasFooter {
		added = append(added, part{FooterPart, []byte(d.footer)})
	}

	zw := zip.NewWriter(w)
	seenTypes := false
	for _, f := range zr.File {
		switch {
		case f.Name == HeaderPart && hasHeader,
			f.Name == FooterPart && hasFooter,
			(f.Name == headerRelsPart || strings.HasPrefix(f.Name, logoPartPrefix)) && hasHeader:
			continue
		}

		b, err := readEntry(f)
		if err != nil {
			return err
		}
		switch f.Name {
		case contentTypesPart:
			seenTypes = true
			s, err := patchContentTypes(string(b), hasHeader, hasFooter, d.logo)
			if err != nil {
				return err
			}
			b = []byte(s)
		case documentRelsPart:
			s, err := patchDocumentRels(string(b), hasHeader, hasFooter)
			if err != nil {
				return err
			}
			b = []byte(s)
		}
		if err := writeEntry(zw, f.Name, b); err != nil {
			return err
		}
	}
	if !seenTypes {
		return fmt.Errorf("包里缺少 %s", contentTypesPart)
	}
	for _, p := range added {
		if err := writeEntry(zw, p.name, p.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeEntry(zw *zip.Writer, name string, b []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// loadLogo 读取并校验 logo；格式与尺寸来自图片头。
func (e *Engine) loadLogo(path string) (*logoImage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("启用了 logo，但没有 logo 路径")
	}
	if e.logo != nil && e.logoPath == path {
		return e.logo, nil
	}
	info, err := imgx.ProbeLogo(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.logo = &logoImage{ext: info.Format, data: data, width: info.Width, height: info.Height}
	e.logoPath = path
	return e.logo, nil
}

// exportPDF：先把改好的包写到临时目录，再交给 soffice 转换，最后复制到目标位置。
func (d *document) exportPDF(target string) error {
	e := d.eng
	if e.soffice == "" || e.tmpDir == "" {
		return fmt.Errorf("%w：PDF 转换器未就绪", docproc.ErrEngineLost)
	}

	work, err := os.MkdirTemp(e.tmpDir, "doc-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	base, ext := code.SplitExt(filepath.Base(d.src))
	staged := filepath.Join(work, "in"+strings.ToLower(ext))
	if err := d.writeFile(staged); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Timeout)
	defer cancel()
	if err := e.convert(ctx, e.soffice, staged, work); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w：%v", docproc.ErrEngineLost, err)
		}
		return fmt.Errorf("转换 PDF 失败（%s）：%w", base, err)
	}

	out := filepath.Join(work, "in.pdf")
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("转换器没有产出 PDF：%w", err)
	}
	_, err = fsx.CopyFile(out, target)
	return err
}

func (d *document) Close(bool) error {
	// 源文件从未被写回：discard 与否都只需释放 zip 句柄。
	return d.r.Close()
}

func runSoffice(ctx context.Context, soffice, src, outDir string) error {
	cmd := exec.CommandContext(ctx, soffice, "--headless", "--convert-to", "pdf", "--outdir", outDir, src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w：%s", err, msg)
		}
		return err
	}
	return nil
}
