package music

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"music_backend/internal/common"
	"music_backend/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Artifact is a generated file waiting to be downloaded.
type Artifact struct {
	Generation  *Generation
	Path        string
	ContentType string
	Filename    string
}

// Service composes songs, renders them and tracks the files it leaves behind.
type Service struct {
	repo     Repository
	composer *Composer
	renderer Renderer
	slots    chan struct{}
	dir      string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	seed     func() int64
}

// NewService takes a nil renderer to serve MIDI only.
func NewService(repo Repository, renderer Renderer, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		composer: NewComposer(),
		renderer: renderer,
		slots:    make(chan struct{}, max(cfg.MusicMaxConcurrentRenders, 1)),
		dir:      cfg.MusicOutputDir,
		ttl:      cfg.MusicFileTTL,
		logger:   logger.Named("music_service"),
		now:      func() time.Time { return time.Now().UTC() },
		seed:     func() int64 { return rand.Int63() },
	}
}

// Generate writes the song as MIDI and, for mp3 requests, renders it.
// The returned file is removed by PurgeExpiredFiles once the TTL passes.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	format := req.Format
	if format == "" {
		format = FormatMP3
	}
	if format == FormatMP3 && s.renderer == nil {
		return nil, common.ErrMusicRenderDisabled
	}

	seed := s.seed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	now := s.now()
	gen := &Generation{
		ID:        uuid.New(),
		Genre:     req.Genre,
		Mood:      req.Mood,
		Tempo:     req.Tempo,
		Format:    format,
		Seed:      seed,
		CreatedAt: now,
	}

	artifact, err := s.generate(ctx, gen)
	if err != nil {
		gen.Status = StatusFailed
		gen.Message = common.TruncateUTF8(err.Error(), 255)
		s.save(ctx, gen)
		s.logger.Error("Music generation failed", zap.String("id", gen.ID.String()), zap.Error(err))
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		return nil, common.ErrMusicGenerationFailed
	}

	expires := now.Add(s.ttl)
	gen.Status = StatusSucceeded
	gen.ExpiresAt = &expires
	s.save(ctx, gen)
	return artifact, nil
}

func (s *Service) generate(ctx context.Context, gen *Generation) (*Artifact, error) {
	song, err := s.composer.Compose(Options{Genre: gen.Genre, Mood: gen.Mood, Tempo: gen.Tempo, Seed: gen.Seed})
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	gen.BPM = song.BPM
	gen.Bars = song.Bars()
	gen.Sections = song.SectionNames()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	midiPath := filepath.Join(s.dir, gen.ID.String()+".mid")
	if err := writeMIDIFile(song, midiPath); err != nil {
		return nil, err
	}

	if gen.Format == FormatMIDI {
		return &Artifact{Generation: gen, Path: midiPath, ContentType: "audio/midi", Filename: "music.mid"}, nil
	}

	mp3Path := filepath.Join(s.dir, gen.ID.String()+".mp3")
	if err := s.render(ctx, midiPath, mp3Path); err != nil {
		s.logger.Error("Music rendering failed", zap.String("id", gen.ID.String()), zap.Error(err))
		return nil, common.ErrMusicRenderingFailed
	}
	return &Artifact{Generation: gen, Path: mp3Path, ContentType: "audio/mpeg", Filename: "music.mp3"}, nil
}

// render waits for a free slot so only a few synthesizers run at once.
func (s *Service) render(ctx context.Context, midiPath, mp3Path string) error {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slots }()
	return s.renderer.Render(ctx, midiPath, mp3Path)
}

func writeMIDIFile(song *Song, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create midi file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close midi file: %w", cerr)
		}
	}()
	return WriteMIDI(song, f)
}

func (s *Service) save(ctx context.Context, gen *Generation) {
	if err := s.repo.Create(context.WithoutCancel(ctx), gen); err != nil {
		s.logger.Error("Failed to store music generation", zap.String("id", gen.ID.String()), zap.Error(err))
	}
}

// GetGeneration returns the record of an earlier request.
func (s *Service) GetGeneration(ctx context.Context, id uuid.UUID) (*GenerationResponse, error) {
	gen, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrGenerationNotFound) {
			return nil, common.ErrNotFound.WithDetails("Music generation not found.")
		}
		return nil, err
	}
	resp := gen.ToResponse()
	return &resp, nil
}

var generatedExtensions = map[string]bool{".mid": true, ".mp3": true, ".wav": true}

// PurgeExpiredFiles removes generated files older than the TTL.
func (s *Service) PurgeExpiredFiles(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	cutoff := s.now().Add(-s.ttl)
	var removed int64
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !generatedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove music file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
