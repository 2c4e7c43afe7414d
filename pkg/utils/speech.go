package utils

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// SynthesisCharLimit is the hard per-request input ceiling of the speech
// endpoint. Longer narration has to be chunked before synthesis.
const SynthesisCharLimit = 4000

type SpeechClientInterface interface {
	// Synthesize renders text to an MP3 buffer. Text must already fit
	// within SynthesisCharLimit.
	Synthesize(ctx context.Context, text string, voice string) ([]byte, error)
}

// OpenAISpeechClient implements SpeechClientInterface over the tts-1 family
type OpenAISpeechClient struct {
	client *openai.Client
	model  string
}

func NewOpenAISpeechClient(apiKey, model string) *OpenAISpeechClient {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISpeechClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (c *OpenAISpeechClient) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrSynthesisFailed
	}
	return audio, nil
}
