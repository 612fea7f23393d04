package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"speechplay/internal/config"
	"speechplay/internal/database"
	"speechplay/internal/game"
	"speechplay/internal/repository"
	"speechplay/internal/service"
)

// ExportCmd writes every stored game to a JSON file
type ExportCmd struct {
	Output string `short:"o" long:"output" description:"output file, - for stdout (default: speechplay_export_YYYYMMDD_HHMMSS.json)"`
}

// Execute runs the export
func (c *ExportCmd) Execute(_ []string) error {
	ctx := context.Background()
	db, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	svc := service.NewExportService(repository.NewGameRepository(db), cfg.DatabaseType)

	if c.Output == "-" {
		_, err := svc.Export(ctx, os.Stdout)
		return err
	}

	path := c.Output
	if path == "" {
		path = fmt.Sprintf("speechplay_export_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	n, err := svc.Export(ctx, f)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"games": n, "path": path}).Info("Export complete")
	return f.Close()
}

// ImportCmd loads games from an export file
type ImportCmd struct {
	Input string `short:"i" long:"input" required:"true" description:"export file to import"`
}

// Execute runs the import
func (c *ImportCmd) Execute(_ []string) error {
	ctx := context.Background()
	f, err := os.Open(c.Input)
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	db, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := service.NewExportService(repository.NewGameRepository(db), cfg.DatabaseType).Import(ctx, f)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"imported": result.Imported, "skipped": result.Skipped}).Info("Import complete")
	return nil
}

// ReplayCmd summarizes games from their action logs and flags any whose
// stored score the log does not reproduce
type ReplayCmd struct {
	Input string `short:"i" long:"input" description:"read games from an export file instead of the database"`
	Game  string `short:"g" long:"game" description:"only replay this game id"`
	JSON  bool   `long:"json" description:"print summaries as JSON"`

	out io.Writer
}

// Execute runs the replay
func (c *ReplayCmd) Execute(_ []string) error {
	games, err := c.load(context.Background())
	if err != nil {
		return err
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	inconsistent, err := replay(out, games, c.Game, c.JSON)
	if err != nil {
		return err
	}
	if inconsistent > 0 {
		return fmt.Errorf("%d game(s) do not match their action log", inconsistent)
	}
	return nil
}

func (c *ReplayCmd) load(ctx context.Context) ([]game.GameSession, error) {
	if c.Input != "" {
		f, err := os.Open(c.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to open export file: %w", err)
		}
		defer f.Close()
		data, err := service.ReadExport(f)
		if err != nil {
			return nil, err
		}
		return data.Games, nil
	}

	db, _, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return repository.NewGameRepository(db).ListAll(ctx)
}

// replay writes one summary per game and returns how many are inconsistent
func replay(w io.Writer, games []game.GameSession, only string, asJSON bool) (int, error) {
	summaries := make([]service.GameSummary, 0, len(games))
	inconsistent := 0
	for _, g := range games {
		if only != "" && g.ID != only {
			continue
		}
		s := service.Summarize(g)
		if !s.Consistent() {
			inconsistent++
			logrus.WithFields(logrus.Fields{
				"game_id":  s.GameID,
				"stored":   s.Score,
				"replayed": s.ReplayedScore,
			}).Warn("score does not match action log")
		}
		summaries = append(summaries, s)
	}
	if only != "" && len(summaries) == 0 {
		return 0, fmt.Errorf("game %s: %w", only, repository.ErrNotFound)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return inconsistent, enc.Encode(summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GAME\tSTATUS\tWINNER\tSLP\tCHILD\tTURNS\tSKIPPED\tCONSISTENT")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%d/%d\t%d\t%t\n",
			s.GameID, s.Status, s.Winner, s.Score.SLP, s.Score.Child,
			s.CompletedTurns, s.MaxTurns, s.SkippedTurns, s.Consistent())
	}
	return inconsistent, tw.Flush()
}

func openDatabase(ctx context.Context) (*database.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ConfigureLogging()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, cfg, nil
}
