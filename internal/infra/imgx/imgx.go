// Package imgx 处理媒体库图片：由 fanart 生成 poster。
package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（输入不一定总是 jpeg）

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 部分站点的图片是 webp
)

const (
	// MaxPosterHeight 是 poster 的最大高度；超过时等比缩小。
	MaxPosterHeight = 1500
	jpegQuality     = 95
)

// Poster 由 fanart 生成 poster.jpg 的内容。
//
// 规则：
// - 输入允许是 JPEG/PNG/WebP，输出固定为 JPEG
// - 横图（宽 > 高）视为封套展开图：取右半边（正面），保留原高度
// - 竖图整张保留
// - 高度超过 MaxPosterHeight 时用 CatmullRom 等比缩小
func Poster(fanart []byte) ([]byte, error) {
	if len(fanart) == 0 {
		return nil, errors.New("fanart 为空")
	}

	img, _, err := image.Decode(bytes.NewReader(fanart))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	crop := b
	if b.Dx() > b.Dy() {
		crop = image.Rect(b.Min.X+b.Dx()/2, b.Min.Y, b.Max.X, b.Max.Y)
	}

	w, h := crop.Dx(), crop.Dy()
	if h > MaxPosterHeight {
		w = w * MaxPosterHeight / h
		h = MaxPosterHeight
		if w < 1 {
			w = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == crop.Dx() && h == crop.Dy() {
		draw.Draw(dst, dst.Bounds(), img, crop.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
