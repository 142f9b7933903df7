// Package store exports finished transcripts and notes to disk. This is a
// presentation-side copy-out: the session engine itself keeps no state
// across sessions.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/interview-copilot/internal/transcript"
)

type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	transcriptDir := filepath.Join(baseDir, "transcripts")
	notesDir := filepath.Join(baseDir, "notes")

	if err := os.MkdirAll(transcriptDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	if err := os.MkdirAll(notesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

func (s *FileStore) SaveTranscript(sessionID string, segments []transcript.Segment) (string, error) {
	filename := fmt.Sprintf("%s.jsonl", sessionID)
	path := filepath.Join(s.baseDir, "transcripts", filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, segment := range segments {
		if err := encoder.Encode(segment); err != nil {
			return "", fmt.Errorf("failed to encode segment: %w", err)
		}
	}

	log.Info().
		Str("session_id", sessionID).
		Str("file", path).
		Int("segments", len(segments)).
		Msg("Saved transcript")

	return path, nil
}

func (s *FileStore) SaveNotes(sessionID string, notes string) (string, error) {
	filename := fmt.Sprintf("%s.md", sessionID)
	path := filepath.Join(s.baseDir, "notes", filename)

	if err := os.WriteFile(path, []byte(notes), 0644); err != nil {
		return "", fmt.Errorf("failed to write notes file: %w", err)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("file", path).
		Int("size", len(notes)).
		Msg("Saved notes")

	return path, nil
}

func (s *FileStore) LoadTranscript(sessionID string) ([]transcript.Segment, error) {
	filename := fmt.Sprintf("%s.jsonl", sessionID)
	path := filepath.Join(s.baseDir, "transcripts", filename)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript file: %w", err)
	}
	defer file.Close()

	var segments []transcript.Segment
	decoder := json.NewDecoder(file)

	for decoder.More() {
		var segment transcript.Segment
		if err := decoder.Decode(&segment); err != nil {
			return nil, fmt.Errorf("failed to decode segment: %w", err)
		}
		segments = append(segments, segment)
	}

	return segments, nil
}

func GenerateSessionID() string {
	return fmt.Sprintf("session_%s", time.Now().Format("20060102_150405"))
}
