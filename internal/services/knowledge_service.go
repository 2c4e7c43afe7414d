package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cicerone/internal/models/db_models"
	"cicerone/internal/models/request_models"
	"cicerone/internal/models/response_models"
	"cicerone/pkg/utils"
)

// Section names double as report keys and as knowledge column routes.
const (
	SectionOverview             = "overview"
	SectionHistoricalContext    = "historical_context"
	SectionArchitecturalDetails = "architectural_details"
	SectionCulturalSignificance = "cultural_significance"
	SectionPracticalInfo        = "practical_info"
	SectionVisitorExperience    = "visitor_experience"
	SectionKeyFacts             = "key_facts"
	SectionTrivia               = "trivia"
)

var knowledgeTextSections = []string{
	SectionOverview,
	SectionHistoricalContext,
	SectionArchitecturalDetails,
	SectionCulturalSignificance,
	SectionPracticalInfo,
	SectionVisitorExperience,
}

// KnowledgeParts is every report key a knowledge run grades.
var KnowledgeParts = append(append([]string{}, knowledgeTextSections...), SectionKeyFacts, SectionTrivia)

var sectionPrompts = map[string]string{
	SectionOverview:             "Write a concise overview: what this place is, where it stands and why people come. 2-4 sentences.",
	SectionHistoricalContext:    "Summarize the history: origin, key dates, how the place changed over time. Up to 6 sentences.",
	SectionArchitecturalDetails: "Describe the architecture and construction: style, materials, dimensions, notable design features. Up to 6 sentences.",
	SectionCulturalSignificance: "Explain the cultural and social significance: role in local identity, events, art or religion. Up to 6 sentences.",
	SectionPracticalInfo:        "Give practical visitor information: access, typical opening patterns, tickets if any, how long a visit takes. Up to 5 sentences. Do not invent prices or hours that are not in the source material.",
	SectionVisitorExperience:    "Describe the visit itself: what you see and hear on site, best vantage points, what surprises first-time visitors. Up to 5 sentences.",
}

const knowledgeSystemPrompt = "You are a meticulous travel researcher. Answer only from widely accepted facts " +
	"and the provided source material; when something is uncertain, leave it out."

const (
	sectionMaxTokens  = 500
	keyFactsMaxTokens = 500
	triviaMaxTokens   = 700
)

// KnowledgeResult carries the assembled fact sheet. Knowledge is nil only
// when every sub-request failed; partial failures leave their section empty
// and keyed in Errors.
type KnowledgeResult struct {
	Knowledge *db_models.POIKnowledge
	Errors    map[string]error
}

type KnowledgeServiceInterface interface {
	GenerateKnowledge(ctx context.Context, poi *db_models.POI, sourceText string, sources []request_models.SourceRef) KnowledgeResult
}

type KnowledgeService struct {
	completion utils.CompletionClientInterface
	logger     *zap.Logger
}

func NewKnowledgeService(completion utils.CompletionClientInterface, logger *zap.Logger) KnowledgeServiceInterface {
	return &KnowledgeService{
		completion: completion,
		logger:     logger,
	}
}

// GenerateKnowledge fans out one request per section plus one for key facts
// and one for trivia, all concurrent. Every request settles; failures are
// captured per section and never abort the siblings.
func (s *KnowledgeService) GenerateKnowledge(ctx context.Context, poi *db_models.POI, sourceText string, sources []request_models.SourceRef) KnowledgeResult {
	row := &db_models.POIKnowledge{
		PoiID:       poi.ID,
		KeyFacts:    "{}",
		Trivia:      []string{},
		LastUpdated: time.Now().UTC(),
	}
	for _, src := range sources {
		if ref := formatSourceRef(src); ref != "" {
			row.Sources = append(row.Sources, ref)
		}
	}

	source := truncateRunes(sourceText, maxSourceChars)
	errs := make(map[string]error)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, section := range knowledgeTextSections {
		section := section
		g.Go(func() error {
			text, err := s.completion.GenerateText(gctx, knowledgeSystemPrompt, s.sectionPrompt(section, poi, source), sectionMaxTokens)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("knowledge section failed",
					zap.String("poi_id", poi.ID.String()),
					zap.String("section", section),
					zap.Error(err))
				errs[section] = err
				return nil
			}
			row.SetSection(section, strings.TrimSpace(text))
			return nil
		})
	}

	g.Go(func() error {
		payload, err := s.completion.GenerateJSON(gctx, knowledgeSystemPrompt, s.keyFactsPrompt(poi, source), keyFactsMaxTokens)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.logger.Warn("key facts failed", zap.String("poi_id", poi.ID.String()), zap.Error(err))
			errs[SectionKeyFacts] = err
			return nil
		}
		row.KeyFacts = utils.SafeJSONObject(payload)
		return nil
	})

	g.Go(func() error {
		payload, err := s.completion.GenerateJSON(gctx, knowledgeSystemPrompt, s.triviaPrompt(poi, source), triviaMaxTokens)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.logger.Warn("trivia failed", zap.String("poi_id", poi.ID.String()), zap.Error(err))
			errs[SectionTrivia] = err
			return nil
		}
		row.Trivia = utils.ExtractStringList(payload)
		return nil
	})

	_ = g.Wait()

	if len(errs) == len(KnowledgeParts) {
		return KnowledgeResult{Errors: errs}
	}
	return KnowledgeResult{Knowledge: row, Errors: errs}
}

func (s *KnowledgeService) sectionPrompt(section string, poi *db_models.POI, source string) string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "%s\n\n", sectionPrompts[section])
	s.writePlace(&prompt, poi, source)
	prompt.WriteString("\nReturn plain prose, no markdown.")
	return prompt.String()
}

func (s *KnowledgeService) keyFactsPrompt(poi *db_models.POI, source string) string {
	var prompt strings.Builder
	prompt.WriteString("Collect the hard facts about this place as a single flat JSON object. " +
		"Use lower_snake_case keys such as built, architect, style, height_m, location, best_time_to_visit. " +
		"Only include facts you are confident about.\n\n")
	s.writePlace(&prompt, poi, source)
	prompt.WriteString("\nReturn only the JSON object.")
	return prompt.String()
}

func (s *KnowledgeService) triviaPrompt(poi *db_models.POI, source string) string {
	var prompt strings.Builder
	prompt.WriteString("List 8-12 surprising, specific trivia facts about this place. " +
		"Each item is one self-contained sentence.\n\n")
	s.writePlace(&prompt, poi, source)
	prompt.WriteString("\nReturn a JSON array of strings, or an object with a single \"trivia\" key holding that array.")
	return prompt.String()
}

func (s *KnowledgeService) writePlace(prompt *strings.Builder, poi *db_models.POI, source string) {
	fmt.Fprintf(prompt, "Place: %s\n", poi.Name)
	if poi.Address != "" {
		fmt.Fprintf(prompt, "Address: %s\n", poi.Address)
	}
	if len(poi.Tags) > 0 {
		fmt.Fprintf(prompt, "Tags: %s\n", strings.Join(poi.Tags, ", "))
	}
	if source != "" {
		fmt.Fprintf(prompt, "\nSource material:\n%s\n", source)
	}
}

func formatSourceRef(src request_models.SourceRef) string {
	name := strings.TrimSpace(src.Name)
	url := strings.TrimSpace(src.URL)
	switch {
	case name != "" && url != "":
		return fmt.Sprintf("%s (%s)", name, url)
	case name != "":
		return name
	default:
		return url
	}
}

// knowledgeSheet maps a stored row to its outward shape.
func knowledgeSheet(row *db_models.POIKnowledge) *response_models.KnowledgeSheet {
	if row == nil {
		return nil
	}

	sheet := &response_models.KnowledgeSheet{
		Overview:             row.Overview,
		HistoricalContext:    row.HistoricalContext,
		ArchitecturalDetails: row.ArchitecturalDetails,
		CulturalSignificance: row.CulturalSignificance,
		PracticalInfo:        row.PracticalInfo,
		VisitorExperience:    row.VisitorExperience,
		Trivia:               row.Trivia,
		Sources:              row.Sources,
		LastUpdated:          utils.FormatRFC3339(row.LastUpdated),
	}
	if sheet.Trivia == nil {
		sheet.Trivia = []string{}
	}
	sheet.KeyFacts = json.RawMessage("{}")
	if row.KeyFacts != "" && json.Valid([]byte(row.KeyFacts)) {
		sheet.KeyFacts = json.RawMessage(row.KeyFacts)
	}
	return sheet
}
