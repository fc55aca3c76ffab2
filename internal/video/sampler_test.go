package video

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testSampler() *FFmpegSampler {
	return &FFmpegSampler{
		Interval:     1.0,
		MaxWidth:     1280,
		MaxHeight:    720,
		MaxFileBytes: 2 << 30,
		MaxDuration:  30 * time.Minute,
	}
}

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"clip.mp4", true},
		{"clip.MP4", true},
		{"clip.avi", true},
		{"clip.mkv", true},
		{"clip.mov", true},
		{"clip.wmv", true},
		{"clip.webm", false},
		{"clip.txt", false},
		{"clip", false},
	}
	for _, tt := range tests {
		if got := AllowedExtension(tt.name); got != tt.want {
			t.Errorf("AllowedExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidate_RejectsExtension(t *testing.T) {
	err := testSampler().Validate(context.Background(), "/tmp/clip.webm")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestValidate_RejectsMissingFile(t *testing.T) {
	err := testSampler().Validate(context.Background(), "/nonexistent/clip.mp4")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
}

func TestValidate_RejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	s := testSampler()
	s.MaxFileBytes = 512

	err := s.Validate(context.Background(), path)
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
}

func TestCheckMetadata(t *testing.T) {
	s := testSampler()

	tests := []struct {
		name    string
		meta    Metadata
		wantErr bool
	}{
		{"valid", Metadata{FPS: 30, FrameCount: 900, Duration: 30}, false},
		{"zero fps", Metadata{FPS: 0, FrameCount: 900, Duration: 30}, true},
		{"zero frames", Metadata{FPS: 30, FrameCount: 0, Duration: 30}, true},
		{"negative fps", Metadata{FPS: -1, FrameCount: 900, Duration: 30}, true},
		{"too long", Metadata{FPS: 30, FrameCount: 90000, Duration: 1801}, true},
		{"at duration cap", Metadata{FPS: 30, FrameCount: 54000, Duration: 1800}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.checkMetadata(tt.meta)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSampleTimestamps_TenMinutes(t *testing.T) {
	ts := SampleTimestamps(600, 1)
	if len(ts) != 600 {
		t.Fatalf("len = %d, want 600", len(ts))
	}
	if ts[0] != 0 {
		t.Errorf("first = %v, want 0", ts[0])
	}
	if ts[599] != 599 {
		t.Errorf("last = %v, want 599", ts[599])
	}
}

func TestSampleTimestamps_FractionalTail(t *testing.T) {
	// 10.5 s at 1 s interval: offsets 0..10, the partial tail second included.
	ts := SampleTimestamps(10.5, 1)
	if len(ts) != 11 {
		t.Fatalf("len = %d, want 11", len(ts))
	}
}

func TestSampleTimestamps_Degenerate(t *testing.T) {
	if ts := SampleTimestamps(0, 1); ts != nil {
		t.Errorf("zero duration: got %v, want nil", ts)
	}
	if ts := SampleTimestamps(-5, 1); ts != nil {
		t.Errorf("negative duration: got %v, want nil", ts)
	}
	if ts := SampleTimestamps(10, 0); ts != nil {
		t.Errorf("zero interval: got %v, want nil", ts)
	}
}

func TestDownscale_NeverUpscales(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 640, 480))
	got := Downscale(small, 1280, 720)
	if got != small {
		t.Error("in-bounds image should be returned unchanged")
	}
}

func TestDownscale_FitsBoundsPreservingAspect(t *testing.T) {
	wide := image.NewRGBA(image.Rect(0, 0, 3840, 2160))
	got := Downscale(wide, 1280, 720)
	b := got.Bounds()
	if b.Dx() != 1280 || b.Dy() != 720 {
		t.Errorf("got %dx%d, want 1280x720", b.Dx(), b.Dy())
	}

	tall := image.NewRGBA(image.Rect(0, 0, 1080, 1920))
	got = Downscale(tall, 1280, 720)
	b = got.Bounds()
	if b.Dy() != 720 {
		t.Errorf("height = %d, want 720", b.Dy())
	}
	if b.Dx() > 1280 {
		t.Errorf("width = %d, exceeds 1280", b.Dx())
	}
	wantW := int(1080 * (720.0 / 1920.0))
	if b.Dx() != wantW {
		t.Errorf("width = %d, want %d (aspect preserved)", b.Dx(), wantW)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
