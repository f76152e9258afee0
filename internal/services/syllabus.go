package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"mindsphere-backend/internal/logger"
)

// Syllabus names the sub-topic studied on each day of a plan.
type Syllabus interface {
	SubTopics(ctx context.Context, topic, difficulty string, days int) ([]string, error)
}

// StaticSyllabus uses a fixed progression: introduction, setup, then practice.
type StaticSyllabus struct{}

func (StaticSyllabus) SubTopics(_ context.Context, _, _ string, days int) ([]string, error) {
	out := make([]string, days)
	for i := range out {
		out[i] = staticSubTopic(i)
	}
	return out, nil
}

func staticSubTopic(day int) string {
	switch day {
	case 0:
		return "Introduction & Basics"
	case 1:
		return "Environment Setup"
	default:
		return "Core Concepts & Practice"
	}
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiSyllabus asks Gemini for a day-by-day outline and falls back to the
// static progression when the call fails or the answer is unusable.
type GeminiSyllabus struct {
	client   *genai.Client
	model    contentGenerator
	fallback Syllabus
	log      *logger.Logger
	rateChan chan struct{} // Token bucket
}

func NewGeminiSyllabus(ctx context.Context, apiKey, modelName string, concurrentReqs int, log *logger.Logger) (*GeminiSyllabus, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.ResponseMIMEType = "application/json"

	s := newGeminiSyllabus(model, concurrentReqs, log)
	s.client = client
	return s, nil
}

func newGeminiSyllabus(model contentGenerator, concurrentReqs int, log *logger.Logger) *GeminiSyllabus {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}
	return &GeminiSyllabus{
		model:    model,
		fallback: StaticSyllabus{},
		log:      log,
		rateChan: rateChan,
	}
}

func (s *GeminiSyllabus) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *GeminiSyllabus) SubTopics(ctx context.Context, topic, difficulty string, days int) ([]string, error) {
	out, err := s.generate(ctx, topic, difficulty, days)
	if err != nil {
		s.log.Warn("gemini syllabus failed, using static outline", "topic", topic, "days", days, "error", err)
		return s.fallback.SubTopics(ctx, topic, difficulty, days)
	}
	return out, nil
}

func (s *GeminiSyllabus) generate(ctx context.Context, topic, difficulty string, days int) ([]string, error) {
	select {
	case <-s.rateChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout waiting for Gemini rate slot")
	}
	defer func() { s.rateChan <- struct{}{} }()

	resp, err := s.model.GenerateContent(ctx, genai.Text(buildSyllabusPrompt(topic, difficulty, days)))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrProviderUnavailable, err)
	}
	return parseSubTopics(extractText(resp), days)
}

func buildSyllabusPrompt(topic, difficulty string, days int) string {
	return fmt.Sprintf(`You are planning a %d-day self-study schedule on "%s" for a %s learner.
Return ONLY a JSON array of exactly %d strings. Element i is a short sub-topic (at most 6 words) for day i+1.
Day 1 should introduce the basics; later days should build on earlier ones.`,
		days, topic, strings.ToLower(difficulty), days)
}

// parseSubTopics accepts a JSON array, optionally wrapped in a code fence or
// surrounded by prose, and requires at least days non-empty entries.
func parseSubTopics(raw string, days int) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("syllabus response is not a JSON array")
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &topics); err != nil {
			return nil, fmt.Errorf("failed to decode syllabus: %w", err)
		}
	}

	if len(topics) < days {
		return nil, fmt.Errorf("syllabus has %d entries, want %d", len(topics), days)
	}
	topics = topics[:days]
	for i, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("syllabus entry %d is empty", i)
		}
		topics[i] = t
	}
	return topics, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
