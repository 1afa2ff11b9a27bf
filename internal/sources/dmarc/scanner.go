package dmarc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lrx-radar/internal/config"
	"lrx-radar/pkg/logger"
)

// ProcessedTracker remembers which report files were already ingested so
// restarts and repeated scans never double-count a report
type ProcessedTracker interface {
	MarkDmarcProcessed(ctx context.Context, marker string) error
	IsDmarcProcessed(ctx context.Context, marker string) (bool, error)
}

// EventQueue is where parsed report records are enqueued
type EventQueue interface {
	Push(ctx context.Context, payload any) error
}

// Scanner polls a local drop directory for aggregate report files (.xml,
// .gz, .zip), unwraps and parses them and enqueues one payload per record.
// File identity includes the modification time, so a re-dropped file with
// new content is ingested again.
type Scanner struct {
	cfg     config.DmarcConfig
	tracker ProcessedTracker
	queue   EventQueue
	logger  *logger.Logger
}

// NewScanner creates a new drop-directory scanner
func NewScanner(cfg config.DmarcConfig, tracker ProcessedTracker, q EventQueue, log *logger.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		tracker: tracker,
		queue:   q,
		logger:  log.WithComponent("dmarc"),
	}
}

// Run scans the drop directory on the configured interval until the
// context is cancelled. With once set it performs a single scan.
func (s *Scanner) Run(ctx context.Context, once bool) error {
	if s.cfg.DropDir == "" {
		s.logger.Info().Msg("dmarc ingest disabled, no drop directory configured")
		return nil
	}

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	for {
		enqueued, err := s.ScanOnce(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("drop directory scan failed")
		} else {
			s.logger.Info().Int("enqueued", enqueued).Msg("drop directory scan complete")
		}

		if once {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ScanOnce walks the drop directory once and returns the number of
// enqueued report records
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.cfg.DropDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read drop directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		n, err := s.processFile(ctx, name)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to process report file")
			continue
		}
		total += n
	}
	return total, nil
}

func (s *Scanner) processFile(ctx context.Context, name string) (int, error) {
	path := filepath.Join(s.cfg.DropDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	marker := fmt.Sprintf("file:%s:%d", abs, info.ModTime().UnixNano())

	seen, err := s.tracker.IsDmarcProcessed(ctx, marker)
	if err != nil {
		return 0, fmt.Errorf("failed to check processed marker: %w", err)
	}
	if seen {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	now := time.Now().UTC()
	for _, doc := range ExtractDocuments(name, data) {
		for _, payload := range ParseReport(doc, now) {
			if err := s.queue.Push(ctx, payload); err != nil {
				return enqueued, fmt.Errorf("failed to enqueue report record: %w", err)
			}
			enqueued++
		}
	}

	if err := s.tracker.MarkDmarcProcessed(ctx, marker); err != nil {
		return enqueued, fmt.Errorf("failed to mark file processed: %w", err)
	}
	return enqueued, nil
}
