package video

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"github.com/your-org/reunite/internal/config"
	"github.com/your-org/reunite/internal/vision"
)

// ValidationError is a structured, reportable reason why a video file was
// rejected before any frame was sampled.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var allowedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mkv": true,
	".mov": true,
	".wmv": true,
}

// AllowedExtension reports whether the filename has an accepted video
// extension. The API uses this for a cheap pre-check before upload;
// the full ffprobe validation runs in the scanner.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Metadata describes a probed video container.
type Metadata struct {
	FPS        float64
	FrameCount int
	Duration   float64 // seconds
}

// Sampler opens a video file and yields one frame per fixed time interval,
// seeking to each target timestamp rather than decoding every native frame.
type Sampler interface {
	Validate(ctx context.Context, path string) error
	// Timestamps returns the ordered list of seconds offsets that FrameAt
	// will be asked for, one per interval of video duration.
	Timestamps(ctx context.Context, path string) ([]float64, error)
	FrameAt(ctx context.Context, path string, ts float64) (image.Image, error)
}

// FFmpegSampler implements Sampler by shelling out to ffprobe/ffmpeg.
// Oversized frames are downscaled to fit MaxWidth x MaxHeight, never
// upscaled.
type FFmpegSampler struct {
	Interval     float64
	MaxWidth     int
	MaxHeight    int
	MaxFileBytes int64
	MaxDuration  time.Duration
}

func NewSampler(cfg config.VideoConfig) *FFmpegSampler {
	return &FFmpegSampler{
		Interval:     cfg.IntervalSeconds,
		MaxWidth:     cfg.MaxWidth,
		MaxHeight:    cfg.MaxHeight,
		MaxFileBytes: cfg.MaxFileBytes,
		MaxDuration:  cfg.MaxDuration(),
	}
}

// Validate checks extension, size and container health. All failures come
// back as *ValidationError; it never panics past the caller.
func (s *FFmpegSampler) Validate(ctx context.Context, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return &ValidationError{Reason: fmt.Sprintf("unsupported format %q", ext)}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("cannot stat file: %v", err)}
	}
	if info.Size() > s.MaxFileBytes {
		return &ValidationError{Reason: fmt.Sprintf("file too large: %d bytes, max %d", info.Size(), s.MaxFileBytes)}
	}

	meta, err := s.Probe(ctx, path)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("cannot open video: %v", err)}
	}

	return s.checkMetadata(meta)
}

func (s *FFmpegSampler) checkMetadata(meta Metadata) error {
	if meta.FPS <= 0 || meta.FrameCount <= 0 {
		return &ValidationError{Reason: "invalid video: cannot determine frame rate or frame count"}
	}
	if meta.Duration > s.MaxDuration.Seconds() {
		return &ValidationError{Reason: fmt.Sprintf("video too long: %.0f minutes, max %.0f",
			meta.Duration/60, s.MaxDuration.Minutes())}
	}
	return nil
}

// Probe reads container metadata with ffprobe.
func (s *FFmpegSampler) Probe(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,nb_frames",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	var probed struct {
		Streams []struct {
			RFrameRate string `json:"r_frame_rate"`
			NBFrames   string `json:"nb_frames"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probed); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probed.Streams) == 0 {
		return Metadata{}, fmt.Errorf("no video stream found")
	}

	meta := Metadata{
		FPS:      parseFrameRate(probed.Streams[0].RFrameRate),
		Duration: parseFloat(probed.Format.Duration),
	}
	meta.FrameCount, _ = strconv.Atoi(probed.Streams[0].NBFrames)
	if meta.FrameCount == 0 && meta.FPS > 0 {
		// Some containers omit nb_frames; derive it.
		meta.FrameCount = int(meta.Duration * meta.FPS)
	}
	return meta, nil
}

func (s *FFmpegSampler) Timestamps(ctx context.Context, path string) ([]float64, error) {
	meta, err := s.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return SampleTimestamps(meta.Duration, s.Interval), nil
}

// SampleTimestamps returns one offset per interval of duration, starting at
// zero: for a 600 s video at a 1 s interval, 600 entries.
func SampleTimestamps(durationSec, intervalSec float64) []float64 {
	if durationSec <= 0 || intervalSec <= 0 {
		return nil
	}

	var ts []float64
	for t := 0.0; t < durationSec; t += intervalSec {
		ts = append(ts, t)
	}
	return ts
}

// FrameAt seeks to ts and decodes exactly one frame. The per-seek cost buys
// us out of decoding every native frame of high-frame-rate footage.
func (s *FFmpegSampler) FrameAt(ctx context.Context, path string, ts float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "4",
		"pipe:1",
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg seek to %.3fs: %w", ts, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no frame at %.3fs", ts)
	}

	img, err := vision.DecodeImage(output)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", ts, err)
	}

	return Downscale(img, s.MaxWidth, s.MaxHeight), nil
}

// Downscale shrinks img to fit within maxW x maxH, preserving aspect ratio.
// Images already within bounds are returned unchanged; it never upscales.
func Downscale(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if sh := float64(maxH) / float64(h); sh < scale {
		scale = sh
	}

	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func parseFrameRate(s string) float64 {
	// ffprobe reports rates as fractions, e.g. "30000/1001".
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		num := parseFloat(parts[0])
		den := parseFloat(parts[1])
		if den == 0 {
			return 0
		}
		return num / den
	}
	return parseFloat(s)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
