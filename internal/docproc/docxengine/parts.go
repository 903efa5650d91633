package docxengine

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/John-Robertt/autopdf/internal/docproc"
	"github.com/John-Robertt/autopdf/internal/domain"
)

// 引擎写入包内的部件。名字固定：重复处理自己产出的副本时直接覆盖。
const (
	HeaderPart = "word/autopdf-header.xml"
	FooterPart = "word/autopdf-footer.xml"

	headerRelsPart = "word/_rels/autopdf-header.xml.rels"
	logoPartPrefix = "word/media/autopdf-logo."

	headerRelID = "rIdAutopdfHeader"
	footerRelID = "rIdAutopdfFooter"
	logoRelID   = "rIdAutopdfLogo"

	contentTypesPart = "[Content_Types].xml"
	documentRelsPart = "word/_rels/document.xml.rels"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsPkg = "http://schemas.openxmlformats.org/package/2006/relationships"

	relTypeHeader = nsR + "/header"
	relTypeFooter = nsR + "/footer"
	relTypeImage  = nsR + "/image"

	ctHeader = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	ctFooter = "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"

	xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// 版式常量（单位：半磅 / 八分之一磅 / twip / EMU）。
const (
	fontName       = "Calibri"
	headerFontSize = 28     // 14pt
	footerFontSize = 24     // 12pt
	lineSize       = 12     // 1.5pt
	headerSpace    = 240    // 12pt
	logoHeightEMU  = 427990 // 33.7pt

	pageLabel = "Página "
	pageOf    = " de "
	authorSep = " \u2014 "
)

// logoImage 是要嵌入页眉的 logo。
type logoImage struct {
	ext           string // png / jpeg / gif
	data          []byte
	width, height int
}

func (l *logoImage) part() string { return logoPartPrefix + l.ext }

func (l *logoImage) contentType() string { return "image/" + l.ext }

// extent 按固定高度等比缩放，返回 (cx, cy)。
func (l *logoImage) extent() (int64, int64) {
	cy := int64(logoHeightEMU)
	return cy * int64(l.width) / int64(l.height), cy
}

func runProps(b *strings.Builder, bold bool, size int) {
	fmt.Fprintf(b, `<w:rPr><w:rFonts w:ascii="%s" w:hAnsi="%s" w:cs="%s"/>`, fontName, fontName, fontName)
	if bold {
		b.WriteString(`<w:b/>`)
	}
	fmt.Fprintf(b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/></w:rPr>`, size, size)
}

func textRun(b *strings.Builder, s string, bold bool, size int) {
	b.WriteString(`<w:r>`)
	runProps(b, bold, size)
	fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t></w:r>`, escapeText(s))
}

// fieldRun 写一个简单域（PAGE / NUMPAGES），占位结果由 Word/LibreOffice 打开时刷新。
func fieldRun(b *strings.Builder, instr string, size int) {
	fmt.Fprintf(b, `<w:fldSimple w:instr=" %s "><w:r>`, instr)
	runProps(b, true, size)
	b.WriteString(`<w:t>1</w:t></w:r></w:fldSimple>`)
}

func border(b *strings.Builder, side string) {
	fmt.Fprintf(b, `<w:pBdr><w:%s w:val="single" w:sz="%d" w:space="1" w:color="000000"/></w:pBdr>`, side, lineSize)
}

func logoRun(b *strings.Builder, l *logoImage) {
	cx, cy := l.extent()
	b.WriteString(`<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`)
	fmt.Fprintf(b, `<wp:extent cx="%d" cy="%d"/><wp:docPr id="9001" name="Logo"/>`, cx, cy)
	b.WriteString(`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>`)
	b.WriteString(`<a:graphic><a:graphicData uri="` + nsPic + `"><pic:pic>`)
	b.WriteString(`<pic:nvPicPr><pic:cNvPr id="0" name="logo"/><pic:cNvPicPr/></pic:nvPicPr>`)
	fmt.Fprintf(b, `<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, logoRelID)
	fmt.Fprintf(b, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, cx, cy)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`)
	b.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`)
}

// headerXML 生成整份页眉：logo 段（居中）+ 代码段（右对齐、加粗，可带下边框）。
// 开关全关时仍输出一个空段落，旧页眉因此被清空。
func headerXML(c domain.FolderCode, opts docproc.HeaderOptions, logo *logoImage) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<w:hdr xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s">`, nsW, nsR, nsWP, nsA, nsPic)
	if logo != nil {
		b.WriteString(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr>`)
		logoRun(&b, logo)
		b.WriteString(`</w:p>`)
	}
	b.WriteString(`<w:p><w:pPr>`)
	if opts.AddLine {
		border(&b, "bottom")
	}
	fmt.Fprintf(&b, `<w:spacing w:after="%d"/><w:jc w:val="right"/></w:pPr>`, headerSpace)
	if opts.AddFolderCode && c != "" {
		textRun(&b, string(c), true, headerFontSize)
	}
	b.WriteString(`</w:p></w:hdr>`)
	return b.String()
}

// footerXML 生成整份页脚："<作者> - Página {PAGE} de {NUMPAGES}"，右对齐，可带上边框。
func footerXML(opts docproc.FooterOptions) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<w:ftr xmlns:w="%s" xmlns:r="%s">`, nsW, nsR)
	b.WriteString(`<w:p><w:pPr>`)
	if opts.AddLine {
		border(&b, "top")
	}
	b.WriteString(`<w:spacing w:before="0" w:after="0"/><w:jc w:val="right"/></w:pPr>`)

	author := strings.TrimSpace(opts.Author)
	if opts.AddAuthor && author != "" {
		if opts.AddPageNumber {
			author += authorSep
		}
		textRun(&b, author, false, footerFontSize)
	}
	if opts.AddPageNumber {
		textRun(&b, pageLabel, false, footerFontSize)
		fieldRun(&b, "PAGE", footerFontSize)
		textRun(&b, pageOf, false, footerFontSize)
		fieldRun(&b, "NUMPAGES", footerFontSize)
	}
	b.WriteString(`</w:p></w:ftr>`)
	return b.String()
}

func headerRelsXML(l *logoImage) string {
	return xmlDecl + `<Relationships xmlns="` + nsPkg + `">` +
		`<Relationship Id="` + logoRelID + `" Type="` + relTypeImage + `" Target="media/autopdf-logo.` + l.ext + `"/>` +
		`</Relationships>`
}

func escapeText(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

var (
	headerRefRE = regexp.MustCompile(`<w:headerReference\b[^>]*?(?:/>|>\s*</w:headerReference>)`)
	footerRefRE = regexp.MustCompile(`<w:footerReference\b[^>]*?(?:/>|>\s*</w:footerReference>)`)
	sectOpenRE  = regexp.MustCompile(`<w:sectPr\b[^>]*?/?>`)
	ownRelRE    = regexp.MustCompile(`<Relationship\b[^>]*\bId="rIdAutopdf[A-Za-z]*"[^>]*/>`)
)

// sectionRefs 返回插入每个节属性里的引用；default/first/even 都指向同一部件，
// 首页不同、奇偶页不同的文档也不会残留旧页眉。
func sectionRefs(header, footer bool) string {
	var b strings.Builder
	for _, typ := range []string{"default", "first", "even"} {
		if header {
			fmt.Fprintf(&b, `<w:headerReference w:type="%s" r:id="%s"/>`, typ, headerRelID)
		}
	}
	for _, typ := range []string{"default", "first", "even"} {
		if footer {
			fmt.Fprintf(&b, `<w:footerReference w:type="%s" r:id="%s"/>`, typ, footerRelID)
		}
	}
	return b.String()
}

// rewriteSections 去掉 document.xml 里原有的页眉/页脚引用，并让每个节指向新部件。
//
// 注意：w:sectPrChange 里的历史节属性不允许出现引用，跳过。
func rewriteSections(body string, header, footer bool) (string, error) {
	if header {
		body = headerRefRE.ReplaceAllString(body, "")
	}
	if footer {
		body = footerRefRE.ReplaceAllString(body, "")
	}
	refs := sectionRefs(header, footer)
	if refs == "" {
		return body, nil
	}

	var b strings.Builder
	last, n := 0, 0
	for _, m := range sectOpenRE.FindAllStringIndex(body, -1) {
		if insideSectPrChange(body, m[0]) {
			continue
		}
		tag := body[m[0]:m[1]]
		b.WriteString(body[last:m[0]])
		if strings.HasSuffix(tag, "/>") {
			b.WriteString(tag[:len(tag)-2] + ">" + refs + "</w:sectPr>")
		} else {
			b.WriteString(tag + refs)
		}
		last = m[1]
		n++
	}
	b.WriteString(body[last:])
	out := b.String()

	if n == 0 {
		i := strings.LastIndex(out, "</w:body>")
		if i < 0 {
			return "", errors.New("document.xml 缺少 w:body")
		}
		out = out[:i] + "<w:sectPr>" + refs + "</w:sectPr>" + out[i:]
	}
	if !strings.Contains(out, `xmlns:r="`) {
		i := strings.Index(out, "<w:document")
		if i < 0 {
			return "", errors.New("document.xml 缺少 w:document")
		}
		i += len("<w:document")
		out = out[:i] + ` xmlns:r="` + nsR + `"` + out[i:]
	}
	return out, nil
}

func insideSectPrChange(s string, at int) bool {
	open := strings.LastIndex(s[:at], "<w:sectPrChange")
	return open >= 0 && open > strings.LastIndex(s[:at], "</w:sectPrChange>")
}

// patchDocumentRels 把新部件登记到 document.xml.rels；先删掉上一次处理留下的同名关系。
func patchDocumentRels(rels string, header, footer bool) (string, error) {
	rels = ownRelRE.ReplaceAllString(rels, "")
	var add strings.Builder
	if header {
		fmt.Fprintf(&add, `<Relationship Id="%s" Type="%s" Target="autopdf-header.xml"/>`, headerRelID, relTypeHeader)
	}
	if footer {
		fmt.Fprintf(&add, `<Relationship Id="%s" Type="%s" Target="autopdf-footer.xml"/>`, footerRelID, relTypeFooter)
	}
	return appendChildren(rels, "Relationships", add.String())
}

// patchContentTypes 补齐新部件的 Override 与 logo 扩展名的 Default。
func patchContentTypes(types string, header, footer bool, logo *logoImage) (string, error) {
	lower := strings.ToLower(types)
	var add strings.Builder
	if header && !strings.Contains(types, `PartName="/`+HeaderPart+`"`) {
		fmt.Fprintf(&add, `<Override PartName="/%s" ContentType="%s"/>`, HeaderPart, ctHeader)
	}
	if footer && !strings.Contains(types, `PartName="/`+FooterPart+`"`) {
		fmt.Fprintf(&add, `<Override PartName="/%s" ContentType="%s"/>`, FooterPart, ctFooter)
	}
	if logo != nil && !strings.Contains(lower, `extension="`+logo.ext+`"`) {
		fmt.Fprintf(&add, `<Default Extension="%s" ContentType="%s"/>`, logo.ext, logo.contentType())
	}
	return appendChildren(types, "Types", add.String())
}

// appendChildren 在根元素结束标签前插入 children；根元素自闭合时展开。
func appendChildren(doc, root, children string) (string, error) {
	if children == "" {
		return doc, nil
	}
	end := "</" + root + ">"
	if i := strings.LastIndex(doc, end); i >= 0 {
		return doc[:i] + children + doc[i:], nil
	}
	i := strings.Index(doc, "<"+root)
	if i < 0 {
		return "", fmt.Errorf("缺少 <%s>", root)
	}
	j := strings.Index(doc[i:], "/>")
	if j < 0 {
		return "", fmt.Errorf("<%s> 不完整", root)
	}
	j += i
	return doc[:j] + ">" + children + end + doc[j+2:], nil
}
