package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fmueller/meetingagent/internal/pipeline"
)

// FileStore writes one JSON document per meeting into a directory.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("history directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory %s: %w", dir, err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(meetingID string) (string, error) {
	if meetingID == "" || strings.ContainsAny(meetingID, `/\`) || strings.Contains(meetingID, "..") {
		return "", fmt.Errorf("invalid meeting id %q", meetingID)
	}
	return filepath.Join(s.Dir, meetingID+".json"), nil
}

func (s *FileStore) Record(_ context.Context, result *pipeline.Result) error {
	path, err := s.path(result.MeetingID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode meeting %s: %w", result.MeetingID, err)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write meeting %s: %w", result.MeetingID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize meeting %s: %w", result.MeetingID, err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, meetingID string) (*pipeline.Result, error) {
	path, err := s.path(meetingID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("read meeting %s: %w", meetingID, err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode meeting %s: %w", meetingID, err)
	}
	return &result, nil
}

// List returns the most recent runs first. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context, limit int) ([]Summary, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var summaries []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		result, err := s.Get(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		summaries = append(summaries, Summarize(result))
	}

	slices.SortFunc(summaries, func(a, b Summary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(b.MeetingID, a.MeetingID)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *FileStore) Close() error { return nil }
