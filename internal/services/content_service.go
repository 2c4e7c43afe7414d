package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/pkg/utils"
)

const (
	// How much raw source material goes into a prompt.
	maxSourceChars = 6000
	// How much of the brief tier seeds the deeper tiers.
	briefExcerptChars = 600
)

type tierSpec struct {
	words     string
	maxTokens int
	style     string
}

var tierSpecs = map[string]tierSpec{
	db_models.TierBrief: {
		words:     "100-150",
		maxTokens: 400,
		style:     "A quick hook for a passing visitor: what this place is and the single most interesting thing about it.",
	},
	db_models.TierDetailed: {
		words:     "250-300",
		maxTokens: 700,
		style:     "A fuller walking-tour narration: history, what to look at, and one or two stories.",
	},
	db_models.TierComplete: {
		words:     "500-600",
		maxTokens: 1300,
		style:     "An in-depth narration for a listener standing still: background, context, architecture, anecdotes and what it means today.",
	},
}

const narratorSystemPrompt = "You are a knowledgeable local guide writing audio narration scripts. " +
	"Write flowing spoken prose for text-to-speech: no headings, no lists, no markdown, no stage directions."

// ContentResult carries whatever tiers were produced. A tier appears either
// in Transcripts or in Errors, never both.
type ContentResult struct {
	Transcripts map[string]string
	Errors      map[string]error
}

type ContentServiceInterface interface {
	GenerateTieredContent(ctx context.Context, poi *db_models.POI, sourceText string, sources []request_models.SourceRef) ContentResult
}

type ContentService struct {
	completion utils.CompletionClientInterface
	logger     *zap.Logger
}

func NewContentService(completion utils.CompletionClientInterface, logger *zap.Logger) ContentServiceInterface {
	return &ContentService{
		completion: completion,
		logger:     logger,
	}
}

// GenerateTieredContent runs two waves: the brief tier first, then the
// detailed and complete tiers concurrently, each seeded with an excerpt of
// the brief text so the tiers stay consistent. Deeper tiers never depend on
// each other, and a failed tier only removes itself from the result.
func (s *ContentService) GenerateTieredContent(ctx context.Context, poi *db_models.POI, sourceText string, sources []request_models.SourceRef) ContentResult {
	result := ContentResult{
		Transcripts: make(map[string]string),
		Errors:      make(map[string]error),
	}

	source := truncateRunes(sourceText, maxSourceChars)

	brief, err := s.generateTier(ctx, db_models.TierBrief, poi, source, "")
	if err != nil {
		s.logger.Warn("tier generation failed",
			zap.String("poi_id", poi.ID.String()),
			zap.String("tier", db_models.TierBrief),
			zap.Error(err))
		result.Errors[db_models.TierBrief] = err
	} else {
		result.Transcripts[db_models.TierBrief] = brief
	}

	// Wave two runs even when the brief tier failed, just without the
	// continuity excerpt.
	excerpt := truncateRunes(brief, briefExcerptChars)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, tier := range []string{db_models.TierDetailed, db_models.TierComplete} {
		tier := tier
		g.Go(func() error {
			text, err := s.generateTier(gctx, tier, poi, source, excerpt)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("tier generation failed",
					zap.String("poi_id", poi.ID.String()),
					zap.String("tier", tier),
					zap.Error(err))
				result.Errors[tier] = err
				return nil
			}
			result.Transcripts[tier] = text
			return nil
		})
	}
	_ = g.Wait()

	if text, ok := result.Transcripts[db_models.TierComplete]; ok {
		if attribution := BuildAttribution(sources); attribution != "" {
			result.Transcripts[db_models.TierComplete] = text + "\n\n" + attribution
		}
	}

	return result
}

func (s *ContentService) generateTier(ctx context.Context, tier string, poi *db_models.POI, source, briefExcerpt string) (string, error) {
	spec := tierSpecs[tier]

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write the %s narration for this point of interest.\n\n", tier)
	fmt.Fprintf(&prompt, "Name: %s\n", poi.Name)
	if poi.Address != "" {
		fmt.Fprintf(&prompt, "Address: %s\n", poi.Address)
	}
	if len(poi.Tags) > 0 {
		fmt.Fprintf(&prompt, "Tags: %s\n", strings.Join(poi.Tags, ", "))
	}
	fmt.Fprintf(&prompt, "\nTarget length: %s words.\n%s\n", spec.words, spec.style)

	if briefExcerpt != "" {
		fmt.Fprintf(&prompt, "\nThe short narration already told the listener this, stay consistent with it and go deeper rather than repeating it:\n%s\n", briefExcerpt)
	}
	if source != "" {
		fmt.Fprintf(&prompt, "\nSource material (may be partial or messy, use what is reliable):\n%s\n", source)
	}
	prompt.WriteString("\nReturn only the narration text.")

	text, err := s.completion.GenerateText(ctx, narratorSystemPrompt, prompt.String(), spec.maxTokens)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", utils.ErrUnexpectedBehaviorOfAI
	}
	return text, nil
}

// BuildAttribution renders the source credits as a spoken sentence, since it
// is appended to narration that gets synthesized.
func BuildAttribution(sources []request_models.SourceRef) string {
	var names []string
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			name = strings.TrimSpace(src.URL)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}

	var joined string
	switch len(names) {
	case 1:
		joined = names[0]
	case 2:
		joined = names[0] + " and " + names[1]
	default:
		joined = strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
	return "This narration draws on material from " + joined + "."
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
