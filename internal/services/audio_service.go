package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cicerone/internal/infra"
	mem "cicerone/pkg/memcache"
	"cicerone/pkg/utils"
)

type AudioServiceInterface interface {
	SynthesizeTier(ctx context.Context, placeID string, tier string, text string) (string, error)
	SignedURL(path string) (string, error)
}

type AudioService struct {
	speech   utils.SpeechClientInterface
	storage  infra.ObjectStorage
	cache    mem.SignedURLStore
	voice    string
	language string
	signTTL  time.Duration
	logger   *zap.Logger
}

func NewAudioService(
	speech utils.SpeechClientInterface,
	storage infra.ObjectStorage,
	cache mem.SignedURLStore,
	voice string,
	language string,
	signTTL time.Duration,
	logger *zap.Logger,
) AudioServiceInterface {
	if language == "" {
		language = "en"
	}
	if signTTL <= 0 {
		signTTL = time.Hour
	}
	return &AudioService{
		speech:   speech,
		storage:  storage,
		cache:    cache,
		voice:    voice,
		language: language,
		signTTL:  signTTL,
		logger:   logger,
	}
}

// SynthesizeTier converts one transcript to speech and uploads the result,
// returning the storage path. Long transcripts are synthesized as parallel
// chunks and stitched back in order; a failed chunk is dropped from the
// stitch rather than sinking the tier. Only when every chunk fails does the
// tier fail.
func (s *AudioService) SynthesizeTier(ctx context.Context, placeID string, tier string, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", utils.ErrInvalidInput
	}

	chunks := utils.SplitForSynthesis(text, utils.SynthesisCharLimit)
	buffers := make([][]byte, len(chunks))
	failures := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			audio, err := s.speech.Synthesize(gctx, chunk, s.voice)
			if err != nil {
				failures[i] = err
				return nil
			}
			buffers[i] = audio
			return nil
		})
	}
	_ = g.Wait()

	var out bytes.Buffer
	synthesized := 0
	for i, buf := range buffers {
		if failures[i] != nil {
			s.logger.Warn("synthesis chunk failed",
				zap.String("place_id", placeID),
				zap.String("tier", tier),
				zap.Int("chunk", i),
				zap.Int("chunks", len(chunks)),
				zap.Error(failures[i]))
			continue
		}
		out.Write(buf)
		synthesized++
	}
	if synthesized == 0 {
		return "", utils.ErrSynthesisFailed
	}

	path := fmt.Sprintf("guides/%s/%s/%s_%d.mp3",
		sanitizePathSegment(placeID), s.language, tier, utils.NowUnixSeconds())
	if err := s.storage.Upload(path, out.Bytes(), "audio/mpeg"); err != nil {
		s.logger.Error("audio upload failed",
			zap.String("place_id", placeID),
			zap.String("tier", tier),
			zap.String("path", path),
			zap.Error(err))
		return "", utils.ErrStorageUnavailable
	}

	s.logger.Info("audio stored",
		zap.String("place_id", placeID),
		zap.String("tier", tier),
		zap.String("path", path),
		zap.Int("chunks", len(chunks)),
		zap.Int("synthesized", synthesized))
	return path, nil
}

// SignedURL resolves a stored path to a time-limited playback URL, serving
// repeats from the in-process cache while the grant is still fresh.
func (s *AudioService) SignedURL(path string) (string, error) {
	if path == "" {
		return "", utils.ErrInvalidInput
	}
	if url, ok := s.cache.Get(path); ok {
		return url, nil
	}

	url, err := s.storage.SignedURL(path, s.signTTL)
	if err != nil {
		return "", utils.ErrStorageUnavailable
	}

	// Cache slightly under the grant lifetime so a hit never hands out a
	// URL about to lapse.
	cacheTTL := s.signTTL - time.Minute
	if cacheTTL <= 0 {
		cacheTTL = s.signTTL / 2
	}
	s.cache.Set(path, url, cacheTTL)
	return url, nil
}

// sanitizePathSegment keeps object keys storage-safe.
func sanitizePathSegment(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "poi"
	}
	return b.String()
}
