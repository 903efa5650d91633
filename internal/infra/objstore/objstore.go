// Package objstore 把处理完成的目标目录发布到 S3 兼容的对象存储。
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/John-Robertt/autopdf/internal/config"
	"github.com/John-Robertt/autopdf/internal/infra/cache"
	"github.com/John-Robertt/autopdf/internal/infra/httpx"
)

// putter 是 minio.Client 中发布用到的子集，便于测试替换。
type putter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Publisher struct {
	api    putter
	bucket string
	prefix string
}

func New(cfg config.PublishTarget) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("发布目标未配置（endpoint/bucket 为空）")
	}
	tr, err := httpx.NewTransport(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("publish.proxy 无效：%w", err)
	}
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: tr,
	})
	if err != nil {
		return nil, err
	}
	return &Publisher{api: api, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (p *Publisher) Target() string {
	return "s3://" + path.Join(p.bucket, strings.Trim(p.prefix, "/"))
}

// Publish 上传 localRoot 下的所有普通文件，返回本次实际上传的数量。
//
// 约束：
// - 对象键 = prefix + 相对 localRoot 的路径（统一用 '/'）
// - 以 '.' 开头的文件/目录跳过（原子写入的临时文件、发布清单等）
// - 增量：清单里大小与修改时间都没变的文件不再上传；清单损坏时退化为全量上传
// - 遇到第一个上传错误即停止；已成功的部分仍写入清单
func (p *Publisher) Publish(ctx context.Context, localRoot string) (int, error) {
	store := cache.New(localRoot)
	target := p.Target()
	manifest, err := store.ReadManifest(target)
	if err != nil {
		manifest = cache.Manifest{}
	}

	uploaded := 0
	err = filepath.WalkDir(localRoot, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if abs != localRoot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(localRoot, abs)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		key := ObjectKey(p.prefix, rel)
		if manifest.Unchanged(key, fi) {
			return nil
		}
		opts := minio.PutObjectOptions{ContentType: contentType(abs)}
		if _, err := p.api.FPutObject(ctx, p.bucket, key, abs, opts); err != nil {
			return fmt.Errorf("上传 %q 失败：%w", key, err)
		}
		manifest.Record(key, fi)
		uploaded++
		return nil
	})

	if uploaded > 0 {
		if werr := store.WriteManifest(target, manifest); werr != nil && err == nil {
			err = fmt.Errorf("写入发布清单失败：%w", werr)
		}
	}
	return uploaded, err
}

// ObjectKey 拼接对象键：prefix 去掉首尾 '/'，rel 统一为 '/' 分隔。
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
