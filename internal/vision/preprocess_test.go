package vision

import (
	"image"
	"image/color"
	"testing"
)

func TestDecodeImage_RoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 9), B: 40, A: 255})
		}
	}

	decoded, err := DecodeImage(EncodeJPEG(src, 90))
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("decoded size = %dx%d, want 32x24", b.Dx(), b.Dy())
	}
}

func TestDecodeImage_Garbage(t *testing.T) {
	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

func TestImageToFloat32CHW_Normalization(t *testing.T) {
	// A uniform gray image at the mean value should normalize to all zeros.
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 127, G: 127, B: 127, A: 255})
		}
	}

	data := imageToFloat32CHW(img, 4, 4, [3]float32{127, 127, 127}, [3]float32{128, 128, 128})
	if len(data) != 3*4*4 {
		t.Fatalf("len = %d, want %d", len(data), 3*4*4)
	}
	for i, v := range data {
		if v != 0 {
			t.Fatalf("data[%d] = %v, want 0", i, v)
		}
	}
}

func TestResizeNearest_PassThrough(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if got := resizeNearest(img, 10, 10); got != img {
		t.Error("same-size resize should return the input image")
	}
}

func TestResizeNearest_TargetSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	got := resizeNearest(img, 640, 640)
	b := got.Bounds()
	if b.Dx() != 640 || b.Dy() != 640 {
		t.Errorf("size = %dx%d, want 640x640", b.Dx(), b.Dy())
	}
}

func TestCropRegion_PadsAndClamps(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	// Interior region: padded on all sides.
	crop := CropRegion(img, image.Rect(40, 40, 60, 60), 20)
	if crop == nil {
		t.Fatal("expected crop")
	}
	if b := crop.Bounds(); b.Dx() != 60 || b.Dy() != 60 {
		t.Errorf("size = %dx%d, want 60x60", b.Dx(), b.Dy())
	}

	// Region at the corner: padding clamps at the image edge.
	crop = CropRegion(img, image.Rect(0, 0, 20, 20), 20)
	if crop == nil {
		t.Fatal("expected crop")
	}
	if b := crop.Bounds(); b.Dx() != 40 || b.Dy() != 40 {
		t.Errorf("size = %dx%d, want 40x40", b.Dx(), b.Dy())
	}
}

func TestCropRegion_Degenerate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	if crop := CropRegion(img, image.Rect(200, 200, 250, 250), 10); crop != nil {
		t.Error("off-image region should yield nil")
	}
	if crop := CropRegion(img, image.Rect(50, 50, 50, 50), 0); crop != nil {
		t.Error("empty region with no padding should yield nil")
	}
}
