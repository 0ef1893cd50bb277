// Package scanner runs the repeating scan loop: discover visible chats,
// hand unseen ones to the processor, scroll, and decide when a scan is
// finished. One scan walks the list top to bottom; scans repeat at a fixed
// interval until the context is cancelled.
package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/bus"
	"github.com/abir2776/extract-message-whatsapp/internal/crawler"
	"github.com/abir2776/extract-message-whatsapp/internal/processor"
	"github.com/abir2776/extract-message-whatsapp/internal/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatProcessor consumes one discovered chat. *processor.Processor is the
// production implementation.
type ChatProcessor interface {
	Process(ctx context.Context, chat crawler.ChatSummary) processor.Result
}

// Config tunes the scan loop.
type Config struct {
	// EmptyBatchLimit ends a scan after this many consecutive batches with
	// zero newly seen chats.
	EmptyBatchLimit int
	// MaxChatsPerScan caps how many chats one scan processes.
	MaxChatsPerScan int
	// RescanInterval is the sleep between the end of one scan and the
	// start of the next.
	RescanInterval time.Duration
}

// DefaultConfig returns the loop tuning the live client tolerates well.
func DefaultConfig() Config {
	return Config{
		EmptyBatchLimit: 3,
		MaxChatsPerScan: 20,
		RescanInterval:  30 * time.Second,
	}
}

// ScanStats is the payload of scan.* events.
type ScanStats struct {
	ID        string
	Batches   int
	Processed int
	Saved     int
}

// Scanner owns the repeating scan loop over one live document.
type Scanner struct {
	crawler *crawler.Crawler
	proc    ChatProcessor
	machine *status.Machine
	bus     *bus.Bus
	cfg     Config
	logger  *zap.Logger
}

// New creates a scanner.
func New(cr *crawler.Crawler, proc ChatProcessor, machine *status.Machine, b *bus.Bus, cfg Config, logger *zap.Logger) *Scanner {
	if cfg.EmptyBatchLimit <= 0 {
		cfg.EmptyBatchLimit = 3
	}
	if cfg.MaxChatsPerScan <= 0 {
		cfg.MaxChatsPerScan = 20
	}
	return &Scanner{crawler: cr, proc: proc, machine: machine, bus: b, cfg: cfg, logger: logger}
}

// Run repeats full scans at the configured interval until ctx is
// cancelled. Only the loss of the underlying document is fatal; a scan
// that aborts (list container missing) is logged and retried next round.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		if err := s.runScan(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RescanInterval):
		}
	}
}

// runScan walks the chat list once. Returns nil when the scan finished or
// aborted recoverably; an error only when the pipeline should stop.
func (s *Scanner) runScan(ctx context.Context) error {
	s.transition(status.Scanning)

	container, err := s.crawler.FindContainer(ctx)
	if errors.Is(err, crawler.ErrContainerNotFound) {
		s.logger.Warn("chat list missing, aborting scan")
		s.transition(status.Idle)
		return nil
	}
	if err != nil {
		return err
	}

	stats := ScanStats{ID: uuid.NewString()}
	s.bus.Publish(bus.Event{Kind: "scan.started", Timestamp: time.Now(), Payload: stats})
	s.logger.Info("scan started", zap.String("scan_id", stats.ID))

	if err := s.crawler.ScrollToTop(ctx, container); err != nil {
		return err
	}

	processed := make(map[string]struct{})
	emptyBatches := 0

	for {
		chats, err := s.crawler.VisibleChats(ctx)
		if err != nil {
			return err
		}

		newSeen := 0
		for _, chat := range chats {
			// Cancellation is honored between chats, never mid-chat.
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, seen := processed[chat.Name]; seen {
				continue
			}
			processed[chat.Name] = struct{}{}
			newSeen++

			res := s.proc.Process(ctx, chat)
			stats.Processed++
			if res.Saved {
				stats.Saved++
			}
			if res.Err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("chat skipped",
					zap.String("chat", chat.Name),
					zap.Error(res.Err))
			}
			if stats.Processed >= s.cfg.MaxChatsPerScan {
				break
			}
		}

		stats.Batches++
		s.transition(status.BatchComplete)
		s.bus.Publish(bus.Event{Kind: "scan.batch_complete", Timestamp: time.Now(), Payload: stats})

		if newSeen == 0 {
			emptyBatches++
		} else {
			emptyBatches = 0
		}
		if emptyBatches >= s.cfg.EmptyBatchLimit || stats.Processed >= s.cfg.MaxChatsPerScan {
			break
		}

		s.transition(status.Scanning)
		if err := s.crawler.ScrollStep(ctx, container); err != nil {
			return err
		}
	}

	s.transition(status.ScanComplete)
	s.bus.Publish(bus.Event{Kind: "scan.completed", Timestamp: time.Now(), Payload: stats})
	s.logger.Info("scan completed",
		zap.String("scan_id", stats.ID),
		zap.Int("batches", stats.Batches),
		zap.Int("processed", stats.Processed),
		zap.Int("saved", stats.Saved))
	s.transition(status.Idle)
	return nil
}

// transition moves the shared state machine; an illegal move is a logic
// bug worth a log line, never a reason to stop harvesting.
func (s *Scanner) transition(to status.State) {
	if err := s.machine.Transition(to); err != nil {
		s.logger.Warn("state transition refused", zap.Error(err))
	}
}
