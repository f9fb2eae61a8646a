package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// twoTone 构造“左黑右白”的图片。
func twoTone(t *testing.T, w, h int) []byte {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				src.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				src.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode jpeg 失败：%v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode poster jpeg 失败：%v", err)
	}
	return img
}

func TestPoster_LandscapeTakesRightHalf(t *testing.T) {
	out, err := Poster(twoTone(t, 200, 100))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	got := decode(t, out)
	gb := got.Bounds()
	if gb.Dx() != 100 || gb.Dy() != 100 {
		t.Fatalf("尺寸不符合预期：got=%dx%d want=100x100", gb.Dx(), gb.Dy())
	}

	// 取中心点像素，应接近白色（JPEG 有损，允许一定偏差）。
	c := color.RGBAModel.Convert(got.At(gb.Min.X+gb.Dx()/2, gb.Min.Y+gb.Dy()/2)).(color.RGBA)
	if c.R < 200 || c.G < 200 || c.B < 200 {
		t.Fatalf("裁切区域不符合预期：中心像素=%v（期望接近白色）", c)
	}
}

func TestPoster_PortraitKeptWhole(t *testing.T) {
	out, err := Poster(twoTone(t, 100, 150))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	gb := decode(t, out).Bounds()
	if gb.Dx() != 100 || gb.Dy() != 150 {
		t.Fatalf("竖图应整张保留：got=%dx%d", gb.Dx(), gb.Dy())
	}
}

func TestPoster_ScalesDownTallImages(t *testing.T) {
	out, err := Poster(twoTone(t, 1000, MaxPosterHeight*2))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	gb := decode(t, out).Bounds()
	if gb.Dy() != MaxPosterHeight || gb.Dx() != 500 {
		t.Fatalf("期望等比缩小到 500x%d，实际 %dx%d", MaxPosterHeight, gb.Dx(), gb.Dy())
	}
}

func TestPoster_Invalid(t *testing.T) {
	if _, err := Poster(nil); err == nil {
		t.Fatalf("期望空输入返回错误")
	}
	if _, err := Poster([]byte("not an image")); err == nil {
		t.Fatalf("期望非法图片返回错误")
	}
}
