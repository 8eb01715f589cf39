package music

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"music_backend/internal/config"

	"go.uber.org/zap"
)

// Renderer turns a MIDI file into an mp3.
type Renderer interface {
	Render(ctx context.Context, midiPath, mp3Path string) error
}

// CommandRenderer runs a shell command template such as
//
//	fluidsynth -ni {soundfont} {midi} -F - -T wav | ffmpeg -y -i - {mp3}
//
// The placeholders are replaced with single-quoted paths.
type CommandRenderer struct {
	template  string
	soundfont string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRenderer returns nil when MUSIC_RENDER_COMMAND is empty.
func NewRenderer(cfg *config.Config, logger *zap.Logger) Renderer {
	if strings.TrimSpace(cfg.MusicRenderCommand) == "" {
		logger.Warn("MUSIC_RENDER_COMMAND not set, mp3 rendering disabled")
		return nil
	}
	return &CommandRenderer{
		template:  cfg.MusicRenderCommand,
		soundfont: cfg.MusicSoundfontPath,
		timeout:   cfg.MusicRenderTimeout,
		logger:    logger.Named("music_renderer"),
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Command expands the template for one file pair.
func (r *CommandRenderer) Command(midiPath, mp3Path string) string {
	return strings.NewReplacer(
		"{soundfont}", shellQuote(r.soundfont),
		"{midi}", shellQuote(midiPath),
		"{mp3}", shellQuote(mp3Path),
	).Replace(r.template)
}

func (r *CommandRenderer) Render(ctx context.Context, midiPath, mp3Path string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	command := r.Command(midiPath, mp3Path)
	r.logger.Debug("Rendering audio", zap.String("command", command))

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("render %s: %w: %s", midiPath, err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(mp3Path)
	if err != nil {
		return fmt.Errorf("render %s: %w", midiPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("render %s: empty output", midiPath)
	}
	return nil
}
