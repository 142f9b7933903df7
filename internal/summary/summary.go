// Package summary turns a finished interview transcript into short debrief
// notes. Runs after the live session has ended; never on the hot path.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/transcript"
	"google.golang.org/api/option"
)

type Summariser struct {
	client *genai.Client
	model  string
}

func NewSummariser(apiKey, model string) (*Summariser, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Summariser{
		client: client,
		model:  model,
	}, nil
}

func (s *Summariser) Close() error {
	return s.client.Close()
}

func (s *Summariser) Summarise(ctx context.Context, segments []transcript.Segment) (string, error) {
	if len(segments) == 0 {
		return "# Interview Debrief\n\nNo transcript available.", nil
	}

	prompt := s.buildPrompt(s.buildTranscript(segments))

	genModel := s.client.GenerativeModel(s.model)
	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate debrief: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no debrief generated")
	}

	var notes strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			notes.WriteString(string(text))
		}
	}

	log.Info().
		Int("segments", len(segments)).
		Int("notes_length", notes.Len()).
		Msg("Generated interview debrief")

	return notes.String(), nil
}

func (s *Summariser) buildTranscript(segments []transcript.Segment) string {
	var b strings.Builder

	for _, segment := range segments {
		speaker := "Interviewer"
		if segment.Role == transcript.RoleModel {
			speaker = "Candidate"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", speaker, segment.Text))
	}

	return b.String()
}

func (s *Summariser) buildPrompt(transcriptText string) string {
	return fmt.Sprintf(`You are an interview coach reviewing a finished mock interview.
Given the transcript below, produce:

1. A short summary of the questions asked.
2. The strongest answers given.
3. Concrete suggestions for what to improve next time.

Keep it under 400 words and use Markdown headings.

TRANSCRIPT:
%s`, transcriptText)
}
