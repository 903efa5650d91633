package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/autopdf/internal/exclude"
)

func TestWalk_TopDownWithPrune(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Modulo1")
	touch(t, filepath.Join(root, "a.docx"))
	touch(t, filepath.Join(root, "Sub", "b.docx"))
	touch(t, filepath.Join(root, "Sub", "Deep", "c.txt"))
	touch(t, filepath.Join(root, "Borrador", "d.docx"))

	var rels []string
	var names []string
	err := Walk(root, exclude.Parse("borrador"), func(f Folder) error {
		require.NoError(t, f.Err)
		rels = append(rels, f.RelPath)
		for _, sf := range f.Files {
			names = append(names, sf.RelPath)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{".", "Sub", filepath.Join("Sub", "Deep")}, rels)
	assert.Equal(t, []string{
		"a.docx",
		filepath.Join("Sub", "b.docx"),
		filepath.Join("Sub", "Deep", "c.txt"),
	}, names)
}

func TestWalk_RootNotPrunedAndFolderName(t *testing.T) {
	root := filepath.Join(t.TempDir(), "borrador-CAL-05")
	touch(t, filepath.Join(root, "x.docx"))

	var seen []Folder
	err := Walk(root, exclude.Parse("borrador"), func(f Folder) error {
		seen = append(seen, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "borrador-CAL-05", seen[0].Name)
	require.Len(t, seen[0].Files, 1)
	assert.Equal(t, ".docx", seen[0].Files[0].Ext)
	assert.Equal(t, "borrador-CAL-05", seen[0].Files[0].Folder)
}

func TestWalk_VisitErrorStops(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "A", "x.docx"))
	touch(t, filepath.Join(root, "B", "y.docx"))

	stop := errors.New("stop")
	calls := 0
	err := Walk(root, exclude.Set{}, func(f Folder) error {
		calls++
		if f.Name == "A" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls) // root + A
}

func TestWalk_MissingRootReportsFolderErr(t *testing.T) {
	var got error
	err := Walk(filepath.Join(t.TempDir(), "nope"), exclude.Set{}, func(f Folder) error {
		got = f.Err
		return nil
	})
	require.NoError(t, err)
	assert.True(t, os.IsNotExist(got))
}

func TestCount_RecursiveWithExclusions(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.docx"))
	touch(t, filepath.Join(root, "b.DOCX"))
	touch(t, filepath.Join(root, "c.docm"))
	touch(t, filepath.Join(root, "Tarea_borrador.docx"))
	touch(t, filepath.Join(root, "Sub", "d.docx"))
	touch(t, filepath.Join(root, "borrador", "e.docx"))
	touch(t, filepath.Join(root, "f.pdf"))

	got := Count([]string{root, filepath.Join(root, "missing")}, []string{".docx"}, exclude.Parse("borrador"))
	assert.Equal(t, 3, got)
}

func TestHasExt(t *testing.T) {
	exts := []string{".docx", ".docm"}
	assert.True(t, HasExt("A.DOCX", exts))
	assert.True(t, HasExt("a.docm", exts))
	assert.False(t, HasExt("a.doc", exts))
	assert.False(t, HasExt("docx", exts))
}

func TestRefresh(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Sub", "old.docx"))

	var sf = newSourceFile(root, filepath.Join(root, "Sub"), "Sub", "old.docx")
	got := Refresh(sf, "CAL-05-new.PDF")
	assert.Equal(t, filepath.Join(root, "Sub", "CAL-05-new.PDF"), got.AbsPath)
	assert.Equal(t, filepath.Join("Sub", "CAL-05-new.PDF"), got.RelPath)
	assert.Equal(t, ".pdf", got.Ext)
	assert.Equal(t, "Sub", got.Folder)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}
