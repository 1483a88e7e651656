package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/bulletin/internal/storage"
	"github.com/robfig/cron/v3"
)

// RegistrationSweeper removes stale account state.
type RegistrationSweeper interface {
	DeleteExpiredRegistrations(ctx context.Context, now time.Time) (int64, error)
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// AttachmentIndex reports which saved file names are still referenced.
type AttachmentIndex interface {
	SavedNames(ctx context.Context) (map[string]struct{}, error)
}

// UploadStore lists and removes files in the upload directory.
type UploadStore interface {
	List() ([]storage.StoredFile, error)
	RemoveFiles(ctx context.Context, paths []string) error
}

// SweepRecorder receives the result of each run.
type SweepRecorder interface {
	RecordSweep(err error, removed map[string]int)
}

// CleanupManager periodically reconciles the upload directory with the
// attachments table and purges expired registrations and tokens.
type CleanupManager struct {
	users       RegistrationSweeper
	attachments AttachmentIndex
	uploads     UploadStore
	recorder    SweepRecorder
	logger      *slog.Logger
	grace       time.Duration
	timeout     time.Duration
	cron        *cron.Cron
	now         func() time.Time
}

// NewCleanupManager creates a new cleanup manager. Files younger than grace
// are left alone since their unit of work may still be in flight.
func NewCleanupManager(
	users RegistrationSweeper,
	attachments AttachmentIndex,
	uploads UploadStore,
	recorder SweepRecorder,
	logger *slog.Logger,
	grace time.Duration,
) *CleanupManager {
	return &CleanupManager{
		users:       users,
		attachments: attachments,
		uploads:     uploads,
		recorder:    recorder,
		logger:      logger,
		grace:       grace,
		timeout:     30 * time.Second,
		cron:        cron.New(),
		now:         time.Now,
	}
}

// Start schedules the sweep on a cron spec such as "@every 1h" and runs it
// once immediately.
func (cm *CleanupManager) Start(ctx context.Context, schedule string) error {
	if _, err := cm.cron.AddFunc(schedule, func() { cm.RunOnce(ctx) }); err != nil {
		return err
	}
	cm.cron.Start()
	go cm.RunOnce(ctx)
	cm.logger.Info("cleanup manager started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (cm *CleanupManager) Stop() {
	<-cm.cron.Stop().Done()
	cm.logger.Info("cleanup manager stopped")
}

// RunOnce performs a single sweep. Each step runs even if an earlier one failed.
func (cm *CleanupManager) RunOnce(ctx context.Context) map[string]int {
	ctx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	now := cm.now()
	removed := map[string]int{}
	var firstErr error
	fail := func(step string, err error) {
		cm.logger.Error("cleanup step failed", slog.String("step", step), slog.Any("error", err))
		if firstErr == nil {
			firstErr = err
		}
	}

	if n, err := cm.users.DeleteExpiredRegistrations(ctx, now); err != nil {
		fail("expired_registrations", err)
	} else {
		removed["expired_registrations"] = int(n)
	}

	if n, err := cm.users.ClearExpiredTokens(ctx, now); err != nil {
		fail("expired_tokens", err)
	} else {
		removed["expired_tokens"] = int(n)
	}

	if n, err := cm.sweepOrphans(ctx, now); err != nil {
		fail("orphan_files", err)
	} else {
		removed["orphan_files"] = n
	}

	if cm.recorder != nil {
		cm.recorder.RecordSweep(firstErr, removed)
	}
	if firstErr == nil {
		cm.logger.Info("cleanup completed",
			slog.Int("expired_registrations", removed["expired_registrations"]),
			slog.Int("expired_tokens", removed["expired_tokens"]),
			slog.Int("orphan_files", removed["orphan_files"]),
		)
	}
	return removed
}

func (cm *CleanupManager) sweepOrphans(ctx context.Context, now time.Time) (int, error) {
	files, err := cm.uploads.List()
	if err != nil {
		return 0, err
	}
	referenced, err := cm.attachments.SavedNames(ctx)
	if err != nil {
		return 0, err
	}

	var orphans []string
	for _, f := range files {
		if _, ok := referenced[f.Name]; ok {
			continue
		}
		if now.Sub(f.ModTime) < cm.grace {
			continue
		}
		orphans = append(orphans, f.Path)
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	if err := cm.uploads.RemoveFiles(ctx, orphans); err != nil {
		return 0, err
	}
	return len(orphans), nil
}
