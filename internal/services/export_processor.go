package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bokforing/internal/core"
	"bokforing/internal/sheets"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval between exports (default: 15m)
	Interval time.Duration

	// Window limits the exported documents; empty exports everything.
	Window core.Window
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{Interval: 15 * time.Minute}
}

// ExportProcessor periodically writes the yearly report to an exporter.
type ExportProcessor struct {
	reports  *ReportService
	exporter sheets.ReportExporter
	config   ExportProcessorConfig

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastRef  string
	lastErr  error
	lastSent time.Time
}

func NewExportProcessor(reports *ReportService, exporter sheets.ReportExporter, config ExportProcessorConfig) *ExportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultExportProcessorConfig().Interval
	}
	return &ExportProcessor{
		reports:  reports,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export processor started",
		"interval", p.config.Interval,
		"window", p.config.Window.Key())
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunOnce exports the configured window immediately. Cached reports are
// dropped first so documents written by other processes are included.
func (p *ExportProcessor) RunOnce(ctx context.Context) (string, error) {
	p.reports.Invalidate()
	ref, err := p.reports.ExportYearly(ctx, p.config.Window, p.exporter)

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.lastRef = ref
		p.lastSent = time.Now()
	}
	p.mu.Unlock()

	return ref, err
}

// LastResult returns the reference and time of the last successful export
// and the error of the last attempt.
func (p *ExportProcessor) LastResult() (ref string, at time.Time, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRef, p.lastSent, p.lastErr
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.exportLogged(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exportLogged(ctx)
		}
	}
}

func (p *ExportProcessor) exportLogged(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled report export failed", "error", err)
	}
}
