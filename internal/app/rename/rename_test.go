package rename

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/autopdf/internal/domain"
	"github.com/John-Robertt/autopdf/internal/prompt"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRename_NoOpWhenAlreadyNamed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-05")
	p := filepath.Join(dir, "CAL-05-Mi Tarea.docx")
	touch(t, p)

	o := New().Rename(p, "CAL-05")
	assert.Equal(t, domain.RenameNoOp, o.Kind)
	assert.Equal(t, "CAL-05-Mi Tarea.docx", o.OldName)
	assert.FileExists(t, p)
}

func TestRename_SuccessThenIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-06")
	p := filepath.Join(dir, "CAL-05-Mi Tarea.docx")
	touch(t, p)

	e := New()
	o := e.Rename(p, "CAL-06")
	require.Equal(t, domain.RenameSuccess, o.Kind)
	assert.False(t, o.Planned)
	assert.Equal(t, "CAL-06-Mi Tarea.docx", o.NewName)
	assert.NoFileExists(t, p)
	assert.FileExists(t, o.NewPath())

	again := e.Rename(o.NewPath(), "CAL-06")
	assert.Equal(t, domain.RenameNoOp, again.Kind)
}

func TestRename_SpacedCode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "02 - Tema")
	p := filepath.Join(dir, "01 - Introducción - random name.docx")
	touch(t, p)

	o := New().Rename(p, "02 - Tema")
	require.Equal(t, domain.RenameSuccess, o.Kind)
	assert.Equal(t, "02 - Tema - random name.docx", o.NewName)
}

func TestPlan_DoesNotTouchDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-06")
	p := filepath.Join(dir, "CAL-05-Mi Tarea.docx")
	touch(t, p)

	o := New().Plan(p, "CAL-06")
	require.Equal(t, domain.RenameSuccess, o.Kind)
	assert.True(t, o.Planned)
	assert.FileExists(t, p)
	assert.NoFileExists(t, o.NewPath())
}

func TestRename_Conflict(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-06")
	p := filepath.Join(dir, "CAL-05-Mi Tarea.docx")
	touch(t, p)
	touch(t, filepath.Join(dir, "CAL-06-Mi Tarea.docx"))

	o := New().Rename(p, "CAL-06")
	assert.Equal(t, domain.RenameConflict, o.Kind)
	assert.Equal(t, "CAL-06-Mi Tarea.docx", o.NewName)
	assert.FileExists(t, p)
}

func TestRename_NeedsInput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "01 - Introducción")
	p := filepath.Join(dir, "random name.docx")
	touch(t, p)

	o := New().Rename(p, "01 - Introducción")
	require.Equal(t, domain.RenameNeedsInput, o.Kind)
	assert.Equal(t, "random name", o.SuggestedRoot)
	assert.Equal(t, dir, o.Dir)
	assert.FileExists(t, p)
}

func TestRename_FailureIsReported(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-06")
	p := filepath.Join(dir, "CAL-05-x.docx")
	touch(t, p)

	e := New()
	e.rename = func(string, string) error { return errors.New("disco lleno") }

	o := e.Rename(p, "CAL-06")
	assert.Equal(t, domain.RenameFailure, o.Kind)
	assert.Contains(t, o.Reason, "disco lleno")
}

type scriptedPrompter struct {
	answers []string // "" 表示取消
	seen    []prompt.Request
	err     error
}

func (s *scriptedPrompter) RequestRoot(_ context.Context, req prompt.Request) (string, bool, error) {
	s.seen = append(s.seen, req)
	if s.err != nil {
		return "", false, s.err
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, a != "", nil
}

func TestResolve_ApplyAndCancel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "01 - Introducción")
	a := filepath.Join(dir, "random name.docx")
	b := filepath.Join(dir, "otro.pdf")
	touch(t, a)
	touch(t, b)

	e := New()
	queue := []domain.RenameOutcome{e.Rename(a, "01 - Introducción"), e.Rename(b, "01 - Introducción")}
	p := &scriptedPrompter{answers: []string{"random name", ""}}

	got, err := e.Resolve(context.Background(), queue, p, true)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.RenameSuccess, got[0].Kind)
	assert.Equal(t, "01 - Introducción - random name.docx", got[0].NewName)
	assert.FileExists(t, filepath.Join(dir, "01 - Introducción - random name.docx"))

	assert.Equal(t, domain.RenameSkipped, got[1].Kind)
	assert.FileExists(t, b)

	require.Len(t, p.seen, 2)
	assert.Equal(t, "random name", p.seen[0].SuggestedRoot)
	assert.Equal(t, "01 - Introducción", p.seen[0].Folder)
}

func TestResolve_PrompterErrorSkipsRest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-05")
	touch(t, filepath.Join(dir, "a.docx"))
	touch(t, filepath.Join(dir, "b.docx"))

	e := New()
	queue := []domain.RenameOutcome{
		e.Plan(filepath.Join(dir, "a.docx"), "CAL-05"),
		e.Plan(filepath.Join(dir, "b.docx"), "CAL-05"),
	}
	got, err := e.Resolve(context.Background(), queue, &scriptedPrompter{err: context.Canceled}, false)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RenameSkipped, got[0].Kind)
	assert.Equal(t, domain.RenameSkipped, got[1].Kind)
}

func TestApplyRoot_ConflictAndNoOp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-05")
	p := filepath.Join(dir, "nota.docx")
	touch(t, p)
	touch(t, filepath.Join(dir, "CAL-05-dup.docx"))

	e := New()
	o := e.Plan(p, "CAL-05")
	require.Equal(t, domain.RenameNeedsInput, o.Kind)

	assert.Equal(t, domain.RenameConflict, e.ApplyRoot(o, "dup", true).Kind)

	// root 与现名一致时不做任何事（compose 结果等于原名才算 NoOp）
	o2 := o
	o2.OldName = "CAL-05-nota.docx"
	assert.Equal(t, domain.RenameNoOp, e.ApplyRoot(o2, "nota", true).Kind)
}

func TestApplyRoot_RejectsPathLikeRoots(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "CAL-05-Patata")
	p := filepath.Join(dir, "nota.docx")
	touch(t, p)

	e := New()
	o := e.Plan(p, "CAL-05")
	require.Equal(t, domain.RenameNeedsInput, o.Kind)

	for _, root := range []string{"x/../../escaped", `..\escaped`, "sub/name", ".", "..", "  "} {
		got := e.ApplyRoot(o, root, true)
		assert.Equal(t, domain.RenameSkipped, got.Kind, "root=%q", root)
		assert.NotEmpty(t, got.Reason, "root=%q", root)
	}
	assert.FileExists(t, p)
	assert.NoFileExists(t, filepath.Join(parent, "escaped.docx"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "nota.docx", entries[0].Name())
}

func TestResolve_PathLikeAnswerIsSkipped(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-05")
	p := filepath.Join(dir, "nota.docx")
	touch(t, p)

	e := New()
	got, err := e.Resolve(context.Background(), []domain.RenameOutcome{e.Plan(p, "CAL-05")},
		&scriptedPrompter{answers: []string{"../fuera"}}, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.RenameSkipped, got[0].Kind)
	assert.FileExists(t, p)
}

func TestRename_CaseOnlyTargetIsConflictWhenDistinct(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "CAL-05")
	p := filepath.Join(dir, "cal-05-Tarea.docx")
	other := filepath.Join(dir, "CAL-05-Tarea.docx")
	touch(t, p)
	touch(t, other)

	si, err := os.Stat(p)
	require.NoError(t, err)
	oi, err := os.Stat(other)
	require.NoError(t, err)

	o := New().Rename(p, "CAL-05")
	if os.SameFile(si, oi) {
		// 大小写不敏感的文件系统：两个名字是同一文件，只改大小写。
		assert.Equal(t, domain.RenameSuccess, o.Kind)
		return
	}
	assert.Equal(t, domain.RenameConflict, o.Kind, "大小写不同的两个文件不能互相覆盖")
	assert.FileExists(t, p)
	assert.FileExists(t, other)
}
