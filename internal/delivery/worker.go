// Package delivery runs the per-cycle protocol that turns due schedule
// entries into dispatch attempts: claim, drain, aggregate, reschedule.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/dispatch"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/internal/recurrence"
	"github.com/nimasrn/church-messaging/internal/repository"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/prom"
)

const (
	opClaim    = "claim schedule"
	opDrain    = "drain ledger"
	opFinalize = "finalize occurrence"
	opCycle    = "run cycle"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type MessageStore interface {
	Get(ctx context.Context, id int64) (*model.Message, error)
	SetStatus(ctx context.Context, id int64, status model.MessageStatus) error
	Aggregate(ctx context.Context, id int64, now time.Time) (*model.DeliveryStats, error)
}

type LedgerStore interface {
	ListPending(ctx context.Context, messageID int64) ([]*model.RecipientEntry, error)
	MarkResult(ctx context.Context, a *model.DeliveryAttempt) error
	ResetForOccurrence(ctx context.Context, messageID int64) (int64, error)
}

type ScheduleStore interface {
	Get(ctx context.Context, id int64) (*model.ScheduleEntry, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*model.ScheduleEntry, error)
	Claim(ctx context.Context, id int64, owner string, now time.Time) error
	Heartbeat(ctx context.Context, id int64, owner string, now time.Time) error
	Complete(ctx context.Context, id int64, owner string, lastRun time.Time) error
	Rearm(ctx context.Context, id int64, owner string, lastRun, nextRun time.Time) error
	RecoverStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type AttemptStore interface {
	Create(ctx context.Context, a *model.DeliveryAttempt) (*model.DeliveryAttempt, error)
}

type RunStore interface {
	Create(ctx context.Context, run *model.WorkerRun) error
}

// Dispatcher routes one attempt to the channel's provider. *dispatch.Registry
// satisfies it.
type Dispatcher interface {
	Deliver(ctx context.Context, ch model.Channel, destination, subject, body string) (dispatch.Outcome, error)
}

type Config struct {
	BatchSize       int
	Throttle        time.Duration
	DispatchTimeout time.Duration
	// StaleAfter is how long a claim may go without a heartbeat before
	// another cycle recovers it. The holder heartbeats once per ledger row,
	// so it must exceed DispatchTimeout plus Throttle.
	StaleAfter time.Duration
	// LegacyLedgerReuse keeps the ledger untouched when a recurrence is
	// re-armed, so later occurrences only deliver rows still pending.
	LegacyLedgerReuse bool
}

func DefaultConfig() Config {
	return Config{
		BatchSize:       10,
		Throttle:        100 * time.Millisecond,
		DispatchTimeout: 30 * time.Second,
		StaleAfter:      30 * time.Minute,
	}
}

// Validate rejects a StaleAfter that a single healthy dispatch could
// outlast, which would let a live claim be recovered mid-drain.
func (c Config) Validate() error {
	if c.StaleAfter <= 0 {
		return nil
	}
	if floor := c.DispatchTimeout + c.Throttle; c.StaleAfter <= floor {
		return fmt.Errorf("stale after %s must exceed dispatch timeout plus throttle (%s)", c.StaleAfter, floor)
	}
	return nil
}

// Stores groups the persistence dependencies of the worker.
type Stores struct {
	Tx        Transactor
	Messages  MessageStore
	Ledger    LedgerStore
	Schedules ScheduleStore
	Attempts  AttemptStore
	Runs      RunStore
}

// NewStores wires the gorm repositories over one handle.
func NewStores(r *repository.Repositories) Stores {
	return Stores{
		Tx:        r.DB,
		Messages:  r.Messages,
		Ledger:    r.Recipients,
		Schedules: r.Schedules,
		Attempts:  r.Attempts,
		Runs:      r.WorkerRuns,
	}
}

type Worker struct {
	cfg        Config
	stores     Stores
	dispatcher Dispatcher
	lock       Locker
	limiter    *rate.Limiter
	now        func() time.Time
}

func NewWorker(cfg Config, stores Stores, dispatcher Dispatcher, lock Locker) *Worker {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}

	return &Worker{
		cfg:        cfg,
		stores:     stores,
		dispatcher: dispatcher,
		lock:       lock,
		limiter:    rate.NewLimiter(limit, 1),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EntryResult describes one processed occurrence.
type EntryResult struct {
	ScheduleID int64
	MessageID  int64
	Claimed    bool
	Sent       int
	Failed     int
	Stats      *model.DeliveryStats
	Completed  bool
	NextRun    *time.Time
}

// errClaimLost marks an entry another worker took first; it is not a failure.
var errClaimLost = errors.New("claim lost")

// errClaimRevoked means a claim this worker held was recovered as stale
// before the occurrence finished. The remaining work belongs to the new
// holder.
var errClaimRevoked = errors.New("schedule claim revoked while processing")

// RunCycle processes up to BatchSize due entries. An error in one entry is
// logged and counted without stopping the others; only a failure to load
// the due list aborts the cycle. The report is persisted in every case.
func (w *Worker) RunCycle(ctx context.Context) (report *model.WorkerRun, err error) {
	report = &model.WorkerRun{ID: uuid.NewString(), StartedAt: w.now()}
	log := logger.With("run_id", report.ID)

	defer func() {
		report.FinishedAt = w.now()
		prom.ObserveCycle(report.FinishedAt.Sub(report.StartedAt).Seconds())
		// a cancelled cycle still leaves a report behind
		if perr := w.stores.Runs.Create(context.WithoutCancel(ctx), report); perr != nil {
			log.Error("Failed to persist run report", "error", perr)
		}
		log.Info("Worker cycle finished",
			"claimed", report.Claimed,
			"processed", report.Processed,
			"rows_sent", report.RowsSent,
			"rows_failed", report.RowsFailed,
			"errors", report.Errors,
			"skipped", report.Skipped,
			"duration", report.FinishedAt.Sub(report.StartedAt))
	}()

	if w.lock != nil {
		release, lerr := w.lock.Acquire(ctx)
		switch {
		case errors.Is(lerr, ErrLockHeld):
			report.Skipped = true
			report.Note = "another cycle is running"
			return report, nil
		case lerr != nil:
			// the claim still protects every entry
			log.Warn("Run lock unavailable, continuing without it", "error", lerr)
		default:
			defer release()
		}
	}

	now := w.now()
	recovered, err := w.stores.Schedules.RecoverStale(ctx, now.Add(-w.cfg.StaleAfter))
	if err != nil {
		log.Warn("Stale claim recovery failed", "error", err)
	} else if recovered > 0 {
		prom.SchedulesRecovered(recovered)
		log.Warn("Recovered stale schedule claims", "count", recovered, "stale_after", w.cfg.StaleAfter)
	}

	due, err := w.stores.Schedules.Due(ctx, now, w.cfg.BatchSize)
	if err != nil {
		report.Errors++
		report.Note = err.Error()
		return report, apperr.Persistence(opCycle, err)
	}
	log.Debug("Due schedule entries loaded", "count", len(due))

	for _, entry := range due {
		if ctx.Err() != nil {
			report.Note = "cycle cancelled"
			break
		}

		res, err := w.safeProcess(ctx, entry, report.ID, log)
		if errors.Is(err, errClaimLost) {
			continue
		}
		if res.Claimed {
			report.Claimed++
		}
		report.RowsSent += res.Sent
		report.RowsFailed += res.Failed
		if err != nil {
			report.Errors++
			prom.ScheduleFailed()
			log.Error("Schedule entry failed", "schedule_id", entry.ID, "message_id", entry.MessageID, "error", err)
			continue
		}
		report.Processed++
	}

	return report, nil
}

// ProcessNow claims and processes one entry immediately, outside of a
// cycle. It is how an immediate send is delivered.
func (w *Worker) ProcessNow(ctx context.Context, scheduleID int64) (*EntryResult, error) {
	entry, err := w.stores.Schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, apperr.Persistence(opClaim, err)
	}

	owner := uuid.NewString()
	log := logger.With("schedule_id", scheduleID, "inline", true, "owner", owner)
	res, err := w.safeProcess(ctx, entry, owner, log)
	if errors.Is(err, errClaimLost) {
		return nil, apperr.Persistence(opClaim, repository.ErrClaimLost)
	}
	return res, err
}

// safeProcess runs one occurrence under the claim token owner.
func (w *Worker) safeProcess(ctx context.Context, entry *model.ScheduleEntry, owner string, log *logger.ZapLogger) (res *EntryResult, err error) {
	res = &EntryResult{ScheduleID: entry.ID, MessageID: entry.MessageID}
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing schedule entry", "schedule_id", entry.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	err = w.process(ctx, entry, owner, res, log)
	return res, err
}

func (w *Worker) process(ctx context.Context, entry *model.ScheduleEntry, owner string, res *EntryResult, log *logger.ZapLogger) error {
	if err := w.claim(ctx, entry, owner); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			prom.ScheduleClaimLost()
			log.Debug("Schedule entry claimed elsewhere", "schedule_id", entry.ID)
			return errClaimLost
		}
		return apperr.Persistence(opClaim, err)
	}
	res.Claimed = true
	prom.ScheduleClaimed()

	msg, err := w.stores.Messages.Get(ctx, entry.MessageID)
	if err != nil {
		return apperr.Persistence(opDrain, err)
	}

	if err := w.drain(ctx, entry.ID, owner, msg, res, log); err != nil {
		return err
	}

	if err := w.finalize(ctx, entry, owner, res); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			return apperr.Persistence(opFinalize, errClaimRevoked)
		}
		return apperr.Persistence(opFinalize, err)
	}

	log.Info("Message processed",
		"message_id", msg.ID,
		"schedule_id", entry.ID,
		"sent", res.Sent,
		"failed", res.Failed,
		"total_sent", res.Stats.Sent,
		"total_failed", res.Stats.Failed,
		"completed", res.Completed)

	return nil
}

func (w *Worker) claim(ctx context.Context, entry *model.ScheduleEntry, owner string) error {
	return w.stores.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := w.stores.Schedules.Claim(ctx, entry.ID, owner, w.now()); err != nil {
			return err
		}
		return w.stores.Messages.SetStatus(ctx, entry.MessageID, model.MessageStatusSending)
	})
}

// drain attempts every pending ledger row once. Dispatch failures are
// recorded on the row; store failures, cancellation and a revoked claim stop
// the drain. The claim is heartbeated before every dispatch and again in the
// transaction that records the outcome.
func (w *Worker) drain(ctx context.Context, scheduleID int64, owner string, msg *model.Message, res *EntryResult, log *logger.ZapLogger) error {
	rows, err := w.stores.Ledger.ListPending(ctx, msg.ID)
	if err != nil {
		return apperr.Persistence(opDrain, err)
	}

	for _, row := range rows {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", opDrain, err)
		}
		if err := w.stores.Schedules.Heartbeat(ctx, scheduleID, owner, w.now()); err != nil {
			return w.drainStopped(err, msg.ID, row.ID, log)
		}

		dctx, cancel := context.WithTimeout(ctx, w.cfg.DispatchTimeout)
		out, derr := w.dispatcher.Deliver(dctx, row.Channel, row.Contact, msg.Title, msg.Content)
		cancel()

		attempt := &model.DeliveryAttempt{
			MessageID:   msg.ID,
			EntryID:     row.ID,
			Channel:     row.Channel,
			Delivered:   out.Delivered && derr == nil,
			Simulated:   out.Simulated,
			Error:       out.Error,
			Segments:    out.Segments,
			AttemptedAt: w.now(),
		}
		if derr != nil && attempt.Error == "" {
			attempt.Error = derr.Error()
		}
		if !attempt.Delivered && attempt.Error == "" {
			attempt.Error = "not delivered"
		}

		err := w.stores.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := w.stores.Schedules.Heartbeat(ctx, scheduleID, owner, w.now()); err != nil {
				return err
			}
			if _, err := w.stores.Attempts.Create(ctx, attempt); err != nil {
				return err
			}
			return w.stores.Ledger.MarkResult(ctx, attempt)
		})
		if err != nil {
			return w.drainStopped(err, msg.ID, row.ID, log, "delivered", attempt.Delivered)
		}

		if attempt.Delivered {
			res.Sent++
		} else {
			res.Failed++
		}
		log.Info("Recipient outcome",
			"message_id", msg.ID,
			"entry_id", row.ID,
			"recipient_id", row.RecipientID,
			"channel", row.Channel,
			"delivered", attempt.Delivered,
			"simulated", attempt.Simulated,
			"segments", attempt.Segments,
			"error", attempt.Error)
	}
	return nil
}

func (w *Worker) drainStopped(err error, messageID, entryID int64, log *logger.ZapLogger, kv ...any) error {
	if !errors.Is(err, repository.ErrClaimLost) {
		return apperr.Persistence(opDrain, err)
	}
	log.Warn("Schedule claim revoked, stopping drain",
		append([]any{"message_id", messageID, "entry_id", entryID}, kv...)...)
	return apperr.Persistence(opDrain, errClaimRevoked)
}

// finalize aggregates the ledger and moves the schedule on, in one
// transaction. A recurrence is anchored to the occurrence's own due time.
func (w *Worker) finalize(ctx context.Context, entry *model.ScheduleEntry, owner string, res *EntryResult) error {
	return w.stores.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := w.now()
		stats, err := w.stores.Messages.Aggregate(ctx, entry.MessageID, now)
		if err != nil {
			return err
		}
		res.Stats = stats

		occurrence := entry.NextRun
		next, recurring := recurrence.NextAfter(occurrence, now, entry.Recurrence)
		if !recurring || recurrence.ShouldTerminate(next, entry.RecurrenceEnd) {
			res.Completed = true
			return w.stores.Schedules.Complete(ctx, entry.ID, owner, occurrence)
		}

		if err := w.stores.Schedules.Rearm(ctx, entry.ID, owner, occurrence, next); err != nil {
			return err
		}
		res.NextRun = &next

		if w.cfg.LegacyLedgerReuse {
			return nil
		}
		if _, err := w.stores.Ledger.ResetForOccurrence(ctx, entry.MessageID); err != nil {
			return err
		}
		return w.stores.Messages.SetStatus(ctx, entry.MessageID, model.MessageStatusScheduled)
	})
}
