package code

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/autopdf/internal/domain"
)

func TestFolderCode(t *testing.T) {
	cases := []struct {
		name string
		want domain.FolderCode
	}{
		{"01 - Introducción - Parte 1", "01 - Introducción"},
		{"01 - Introducción", "01 - Introducción"},
		{"CAL-05-Patata", "CAL-05"},
		{"CAL-05", "CAL-05"},
		{"A-B-C-D", "A-B"},
		// 带空格约定优先：即使后面还有裸 "-"。
		{"01 - CAL-05 - Tema", "01 - CAL-05"},
		{"Documentos", "Documentos"},
		{"", ""},
		{"-x", "-x"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FolderCode(c.name), "FolderCode(%q)", c.name)
	}
}

func TestExtractRoot(t *testing.T) {
	cases := []struct {
		file      string
		wantRoot  string
		wantFound bool
	}{
		{"CAL-05-Mi Tarea.docx", "Mi Tarea", true},
		{"CAL-05-Mi-Tarea.docx", "Mi-Tarea", true},
		{"01 - Introducción - random name.docx", "random name", true},
		{"01 - Intro - A - B.docx", "A - B", true},
		{"random name.docx", "", false},
		{"CAL-05.docx", "", false},
		{"CAL-05-.docx", "", false},
		{"sin-extension-raiz", "raiz", true},
		{"version.1.2-a-b.txt", "b", true},
	}
	for _, c := range cases {
		root, found := ExtractRoot(c.file)
		assert.Equal(t, c.wantFound, found, "found(%q)", c.file)
		assert.Equal(t, c.wantRoot, root, "root(%q)", c.file)
	}
}

func TestSplitExt(t *testing.T) {
	base, ext := SplitExt("a.b.docx")
	assert.Equal(t, "a.b", base)
	assert.Equal(t, ".docx", ext)

	base, ext = SplitExt("README")
	assert.Equal(t, "README", base)
	assert.Equal(t, "", ext)
}

func TestCompose(t *testing.T) {
	assert.Equal(t, "01 - Introducción - random name.docx", Compose("01 - Introducción", "random name", ".docx"))
	assert.Equal(t, "CAL-05-Mi Tarea.docx", Compose("CAL-05", "Mi Tarea", ".docx"))
	// 分隔符只看 code，不看 root。
	assert.Equal(t, "CAL-05-A - B", Compose("CAL-05", "A - B", ""))
}

func TestComposeExtractRoundTrip(t *testing.T) {
	codes := []domain.FolderCode{"CAL-05", "01 - Introducción", "X-1"}
	roots := []string{"Mi Tarea", "informe final", "a_b"}
	exts := []string{".docx", ".pdf", ""}

	for _, c := range codes {
		for _, r := range roots {
			for _, e := range exts {
				name := Compose(c, r, e)
				got, found := ExtractRoot(name)
				assert.True(t, found, "found(%q)", name)
				assert.Equal(t, r, got, "root(%q)", name)
				assert.Equal(t, name, Compose(c, got, e), "idempotent(%q)", name)
			}
		}
	}
}
