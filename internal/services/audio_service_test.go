package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cicerone/internal/models/db_models"
	mem "cicerone/pkg/memcache"
	"cicerone/pkg/utils"
)

type fakeSpeechClient struct {
	mu             sync.Mutex
	synthesizeFunc func(text, voice string) ([]byte, error)
	texts          []string
	voices         []string
}

func (f *fakeSpeechClient) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.voices = append(f.voices, voice)
	fn := f.synthesizeFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(text, voice)
	}
	return []byte("audio:" + text[:min(8, len(text))]), nil
}

func (f *fakeSpeechClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type storedUpload struct {
	data        []byte
	contentType string
}

type fakeObjectStorage struct {
	mu            sync.Mutex
	uploadErr     error
	signedURLFunc func(path string) (string, error)
	uploads       map[string]storedUpload
	signCalls     int
}

func newFakeStorage() *fakeObjectStorage {
	return &fakeObjectStorage{uploads: map[string]storedUpload{}}
}

func (f *fakeObjectStorage) Upload(path string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[path] = storedUpload{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (f *fakeObjectStorage) PublicURL(path string) string {
	return "https://storage.example.org/public/" + path
}

func (f *fakeObjectStorage) SignedURL(path string, expiresIn time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	if f.signedURLFunc != nil {
		return f.signedURLFunc(path)
	}
	return "https://storage.example.org/signed/" + path, nil
}

func (f *fakeObjectStorage) onlyUpload(t *testing.T) (string, storedUpload) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.uploads, 1)
	for path, up := range f.uploads {
		return path, up
	}
	return "", storedUpload{}
}

func newAudioServiceForTest(speech *fakeSpeechClient, storage *fakeObjectStorage) AudioServiceInterface {
	return NewAudioService(speech, storage, mem.NewSignedURLs(), "alloy", "en", time.Hour, zap.NewNop())
}

// chunkedText builds n paragraphs, each just under the synthesis ceiling, so
// the chunker is forced to cut exactly at paragraph boundaries.
func chunkedText(n int) string {
	paras := make([]string, 0, n)
	for i := 0; i < n; i++ {
		paras = append(paras, "P"+string(rune('1'+i))+" "+strings.Repeat("filler words here. ", 200))
	}
	return strings.Join(paras, "\n\n")
}

func TestSynthesizeTier_SingleChunk(t *testing.T) {
	speech := &fakeSpeechClient{
		synthesizeFunc: func(text, voice string) ([]byte, error) {
			return []byte("mp3-bytes"), nil
		},
	}
	storage := newFakeStorage()
	svc := newAudioServiceForTest(speech, storage)

	path, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierBrief, "A short narration.")

	require.NoError(t, err)
	assert.Equal(t, 1, speech.callCount())
	assert.Equal(t, "alloy", speech.voices[0])
	assert.Regexp(t, regexp.MustCompile(`^guides/place-123/en/brief_\d+\.mp3$`), path)

	uploadedPath, up := storage.onlyUpload(t)
	assert.Equal(t, path, uploadedPath)
	assert.Equal(t, "audio/mpeg", up.contentType)
	assert.Equal(t, []byte("mp3-bytes"), up.data)
}

func TestSynthesizeTier_ChunksConcatenateInOrder(t *testing.T) {
	speech := &fakeSpeechClient{
		synthesizeFunc: func(text, voice string) ([]byte, error) {
			switch {
			case strings.HasPrefix(text, "P1"):
				return []byte("[ONE]"), nil
			case strings.HasPrefix(text, "P2"):
				return []byte("[TWO]"), nil
			case strings.HasPrefix(text, "P3"):
				return []byte("[THREE]"), nil
			}
			return nil, errors.New("unexpected chunk")
		},
	}
	storage := newFakeStorage()
	svc := newAudioServiceForTest(speech, storage)

	path, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierComplete, chunkedText(3))

	require.NoError(t, err)
	assert.Equal(t, 3, speech.callCount())

	_, up := storage.onlyUpload(t)
	assert.Equal(t, "[ONE][TWO][THREE]", string(up.data))
	assert.Contains(t, path, "/complete_")
}

func TestSynthesizeTier_FailedChunkIsSkipped(t *testing.T) {
	speech := &fakeSpeechClient{
		synthesizeFunc: func(text, voice string) ([]byte, error) {
			if strings.HasPrefix(text, "P2") {
				return nil, errors.New("tts rejected the request")
			}
			if strings.HasPrefix(text, "P1") {
				return []byte("[ONE]"), nil
			}
			return []byte("[THREE]"), nil
		},
	}
	storage := newFakeStorage()
	svc := newAudioServiceForTest(speech, storage)

	_, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierDetailed, chunkedText(3))

	require.NoError(t, err)
	_, up := storage.onlyUpload(t)
	assert.Equal(t, "[ONE][THREE]", string(up.data))
}

func TestSynthesizeTier_AllChunksFailed(t *testing.T) {
	speech := &fakeSpeechClient{
		synthesizeFunc: func(text, voice string) ([]byte, error) {
			return nil, errors.New("tts down")
		},
	}
	storage := newFakeStorage()
	svc := newAudioServiceForTest(speech, storage)

	_, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierBrief, chunkedText(2))

	assert.ErrorIs(t, err, utils.ErrSynthesisFailed)
	assert.Empty(t, storage.uploads)
}

func TestSynthesizeTier_UploadFailure(t *testing.T) {
	speech := &fakeSpeechClient{}
	storage := newFakeStorage()
	storage.uploadErr = errors.New("bucket gone")
	svc := newAudioServiceForTest(speech, storage)

	_, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierBrief, "A short narration.")

	assert.ErrorIs(t, err, utils.ErrStorageUnavailable)
}

func TestSynthesizeTier_EmptyText(t *testing.T) {
	svc := newAudioServiceForTest(&fakeSpeechClient{}, newFakeStorage())

	_, err := svc.SynthesizeTier(context.Background(), "place-123", db_models.TierBrief, "   ")

	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestSynthesizeTier_PathSanitization(t *testing.T) {
	speech := &fakeSpeechClient{}
	storage := newFakeStorage()
	svc := newAudioServiceForTest(speech, storage)

	path, err := svc.SynthesizeTier(context.Background(), "ChIJ abc/def:1", db_models.TierBrief, "Hello there.")

	require.NoError(t, err)
	assert.Contains(t, path, "guides/ChIJ_abc_def_1/en/")
}

func TestSignedURL_CachesGrants(t *testing.T) {
	storage := newFakeStorage()
	svc := newAudioServiceForTest(&fakeSpeechClient{}, storage)

	first, err := svc.SignedURL("guides/p/en/brief_1.mp3")
	require.NoError(t, err)
	second, err := svc.SignedURL("guides/p/en/brief_1.mp3")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, storage.signCalls)

	_, err = svc.SignedURL("guides/p/en/detailed_1.mp3")
	require.NoError(t, err)
	assert.Equal(t, 2, storage.signCalls)
}

func TestSignedURL_EmptyPath(t *testing.T) {
	svc := newAudioServiceForTest(&fakeSpeechClient{}, newFakeStorage())

	_, err := svc.SignedURL("")

	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}
