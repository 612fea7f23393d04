package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"speechplay/internal/game"
	"speechplay/internal/repository"
)

// ExportFormatVersion is written into every export document
const ExportFormatVersion = "1"

// ExportData is the document written by Export and read by Import
type ExportData struct {
	Version      string             `json:"version"`
	ExportedAt   time.Time          `json:"exported_at"`
	DatabaseType string             `json:"database_type,omitempty"`
	Games        []game.GameSession `json:"games"`
}

// ArchiveStore is the persistence the export service needs
type ArchiveStore interface {
	Create(ctx context.Context, g game.GameSession) error
	ListAll(ctx context.Context) ([]game.GameSession, error)
}

// ImportResult counts what an import did
type ImportResult struct {
	Imported int
	Skipped  int
}

// ExportService copies games with their action logs in and out of the store
type ExportService struct {
	store        ArchiveStore
	databaseType string
	now          func() time.Time
}

// NewExportService creates a new export service
func NewExportService(store ArchiveStore, databaseType string) *ExportService {
	return &ExportService{store: store, databaseType: databaseType, now: time.Now}
}

// Export writes every game to w as one JSON document
func (s *ExportService) Export(ctx context.Context, w io.Writer) (int, error) {
	games, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list games: %w", err)
	}
	if games == nil {
		games = []game.GameSession{}
	}

	data := ExportData{
		Version:      ExportFormatVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.databaseType,
		Games:        games,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return 0, fmt.Errorf("failed to encode export: %w", err)
	}
	return len(games), nil
}

// Import reads an export document and creates every game it holds. Games
// whose id already exists are skipped.
func (s *ExportService) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	data, err := ReadExport(r)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	for _, g := range data.Games {
		if err := validateImported(g); err != nil {
			return result, fmt.Errorf("game %s: %w", g.ID, err)
		}
		if g.Actions == nil {
			g.Actions = []game.Action{}
		}
		err := s.store.Create(ctx, g)
		if errors.Is(err, repository.ErrConflict) {
			logrus.WithField("game_id", g.ID).Info("game already exists, skipping")
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to import game %s: %w", g.ID, err)
		}
		result.Imported++
	}
	return result, nil
}

// ReadExport decodes and checks an export document
func ReadExport(r io.Reader) (ExportData, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return ExportData{}, fmt.Errorf("failed to decode export: %w", err)
	}
	if data.Version != ExportFormatVersion {
		return ExportData{}, fmt.Errorf("unsupported export version %q", data.Version)
	}
	return data, nil
}

// validateImported rejects snapshots the game package could not have produced
func validateImported(g game.GameSession) error {
	if g.ID == "" {
		return errors.New("id is required")
	}
	return g.Validate()
}
