package cache

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/autopdf/internal/infra/fsx"
)

// DirName 是目标目录下的缓存目录名；以 '.' 开头，发布时会被跳过。
const DirName = ".autopdf"

// Store 提供 <dest>/.autopdf/ 下的发布清单读写。只在 apply 的发布阶段使用。
type Store struct {
	Root string // 目标目录
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

// Entry 记录一个已上传对象对应的本地文件快照。
type Entry struct {
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manifest 以对象键为 key，记录上一次成功上传时的文件快照。
type Manifest map[string]Entry

// Unchanged 报告 key 对应的文件自上次上传后是否没有变化（大小与修改时间都相同）。
func (m Manifest) Unchanged(key string, fi fs.FileInfo) bool {
	e, ok := m[key]
	if !ok || fi == nil {
		return false
	}
	return e.Size == fi.Size() && e.ModTime.Equal(fi.ModTime().UTC())
}

func (m Manifest) Record(key string, fi fs.FileInfo) {
	m[key] = Entry{Size: fi.Size(), ModTime: fi.ModTime().UTC()}
}

// ManifestPath 返回某个发布目标的清单路径；不同目标互不影响。
func (s Store) ManifestPath(target string) (string, error) {
	name, err := cleanTarget(target)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, DirName, "publish", name+".json"), nil
}

// ReadManifest 读取清单；不存在时返回空清单。
func (s Store) ReadManifest(target string) (Manifest, error) {
	path, err := s.ManifestPath(target)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return nil, err
	}
	m := Manifest{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("清单损坏：%q：%w", path, err)
	}
	return m, nil
}

func (s Store) WriteManifest(target string, m Manifest) error {
	path, err := s.ManifestPath(target)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), append(b, '\n'))
}

var unsafeRE = regexp.MustCompile(`[^a-z0-9_.-]+`)

// cleanTarget 把 "s3://bucket/prefix" 之类的目标名变成安全的文件名。
func cleanTarget(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.TrimPrefix(t, "s3://")
	t = strings.Trim(unsafeRE.ReplaceAllString(t, "_"), "_.")
	if t == "" {
		return "", fmt.Errorf("发布目标不能为空")
	}
	return t, nil
}
