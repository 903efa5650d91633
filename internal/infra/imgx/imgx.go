package imgx

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"os"
)

// LogoInfo 是 logo 文件的基本信息（只读 header，不解码整张图）。
type LogoInfo struct {
	Format string
	Width  int
	Height int
}

// ErrInvalidImage 表示文件存在但不是可识别的图片（或尺寸为 0）。
var ErrInvalidImage = errors.New("无法识别的图片")

// ProbeLogo 检查 path 是否是可用的 logo 图片。
//
// 约束：
// - 支持 PNG/JPEG/GIF（依赖标准库解码器注册）
// - 文件不存在时返回的错误满足 os.IsNotExist
// - 只读取图片头部，不做缩放
func ProbeLogo(path string) (LogoInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return LogoInfo{}, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		return LogoInfo{}, fmt.Errorf("%w：%q 是目录", ErrInvalidImage, path)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return LogoInfo{}, fmt.Errorf("%w：%q：%v", ErrInvalidImage, path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return LogoInfo{}, fmt.Errorf("%w：%q 尺寸无效", ErrInvalidImage, path)
	}
	return LogoInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
