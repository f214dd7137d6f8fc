package converter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// terminationGrace is how long a cancelled ffmpeg process gets to exit
// after SIGTERM before it is killed.
const terminationGrace = 5 * time.Second

type Options struct {
	BinaryPath string
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

type Converter struct {
	opts   Options
	logger *zap.Logger
}

func NewConverter(opts Options, logger *zap.Logger) *Converter {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "ffmpeg"
	}
	return &Converter{opts: opts, logger: logger}
}

// Convert runs the external transcoder over inputPath, writing
// outputPath in the requested format. The returned duration covers the
// whole invocation and is valid on failure too. Any failure mode,
// including a missing binary, comes back as an error value carrying the
// captured stderr.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath, outputFormat string) (int64, error) {
	args := c.buildArgs(inputPath, outputPath, outputFormat)

	c.logger.Info("Starting conversion",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", outputFormat),
	)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.opts.BinaryPath, args...)
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminationGrace

	start := time.Now()
	err := cmd.Run()
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = err.Error()
		}
		c.logger.Error("Conversion failed",
			zap.String("input", inputPath),
			zap.Int64("duration_ms", durationMS),
			zap.String("stderr", errText),
		)
		return durationMS, fmt.Errorf("ffmpeg: %s", errText)
	}

	c.logger.Info("Conversion completed",
		zap.String("output", outputPath),
		zap.Int64("duration_ms", durationMS),
	)
	return durationMS, nil
}

func (c *Converter) buildArgs(inputPath, outputPath, outputFormat string) []string {
	args := []string{
		"-i", inputPath,
		"-y",
		"-hide_banner",
		"-loglevel", "warning",
	}

	switch outputFormat {
	case "mp4":
		args = append(args,
			"-c:v", c.opts.VideoCodec,
			"-preset", c.opts.Preset,
			"-crf", strconv.Itoa(c.opts.CRF),
			"-c:a", c.opts.AudioCodec,
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	case "webm":
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-c:a", "libopus",
			"-b:a", "128k",
		)
	case "gif":
		args = append(args,
			"-vf", "fps=15,scale=480:-1:flags=lanczos",
			"-c:v", "gif",
		)
	case "avi":
		args = append(args,
			"-c:v", "mpeg4",
			"-q:v", "5",
			"-c:a", "libmp3lame",
			"-q:a", "2",
		)
	case "mov":
		args = append(args,
			"-c:v", c.opts.VideoCodec,
			"-c:a", c.opts.AudioCodec,
			"-f", "mov",
		)
	case "mkv":
		args = append(args,
			"-c:v", c.opts.VideoCodec,
			"-c:a", c.opts.AudioCodec,
			"-f", "matroska",
		)
	case "mp3":
		args = append(args,
			"-vn",
			"-c:a", "libmp3lame",
			"-b:a", "192k",
		)
	default:
		args = append(args, "-c", "copy")
	}

	return append(args, outputPath)
}
