package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

// IsPathTypeConflict 判断 err 是否为目标路径类型冲突。
func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 重命名只发生在同一目录内，出现 EXDEV 说明环境异常；不做 copy+delete 兜底。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// SamePath 报告两个路径是否指向同一文件：
// 先做大小写不敏感的绝对路径比较，再用 os.SameFile 兜底（硬链接/大小写不敏感文件系统）。
func SamePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA == nil && errB == nil && strings.EqualFold(filepath.Clean(aa), filepath.Clean(bb)) {
		return true
	}
	fa, errA := os.Stat(a)
	fb, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// CopyFile 把 src 复制到 dst（dst 是完整文件路径）。
//
// 语义：
// - 自动创建 dst 的父目录
// - src 与 dst 是同一路径时拒绝复制：返回 (false, nil)
// - 目标已存在则覆盖（扁平目标目录下“后写者胜”是既有行为）
// - 临时文件 + rename 写入，失败不会留下半截目标；保留源文件的修改时间
func CopyFile(src, dst string) (bool, error) {
	if SamePath(src, dst) {
		return false, nil
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		return false, &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, err
	}

	dir, name := filepath.Split(dst)
	if err := writeAtomic(filepath.Clean(dir), name, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return false, err
	}

	// 修改时间：best-effort（失败不影响内容正确性）。
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return true, nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），已存在则覆盖。
// Windows 上 rename 覆盖为 best-effort。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	return writeAtomic(dir, name, 0o644, func(w io.Writer) error {
		return writeAll(w, data)
	})
}

func writeAtomic(dir, name string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件（前缀带 '.'），保证 rename 的原子性。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := fill(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := Rename(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
