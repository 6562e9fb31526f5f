package executors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ordersaga/src/attention"
	"ordersaga/src/connectors"
	"ordersaga/src/locks"
	"ordersaga/src/model"
	"ordersaga/src/plugin"
	"ordersaga/src/repository"
)

const sweepJob = "retry-sweep"

// CallStore is the part of the call log repository the sweep needs. It doubles as
// the sink for the rows replays leave behind.
type CallStore interface {
	connectors.CallSink
	ClaimRetryable(ctx context.Context, maxRetries int, limit int) ([]model.ExternalCallLog, error)
	MarkSucceeded(ctx context.Context, row *model.ExternalCallLog) error
	MarkFailed(ctx context.Context, row *model.ExternalCallLog, maxRetries int, reason string) (bool, error)
}

type AttentionStore interface {
	UpdateAttention(ctx context.Context, orderID uint, itemNos []string, add []attention.Flag, remove []attention.Flag) error
}

type Replayer interface {
	Replay(ctx context.Context, call connectors.Call, row *model.ExternalCallLog) (*model.ExternalCallLog, error)
}

// SweepReport counts what one sweep did with the rows it claimed.
type SweepReport struct {
	LeaseHeld bool `json:"lease_held"`
	Claimed   int  `json:"claimed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Exhausted int  `json:"exhausted"`
	Skipped   int  `json:"skipped"`
}

type Sweeper struct {
	cfg      Config
	calls    CallStore
	orders   AttentionStore
	replayer Replayer
	locker   locks.Locker
	plugin   plugin.Plugin
	log      *logger.Entry
}

func NewSweeper(cfg Config, calls CallStore, orders AttentionStore, replayer Replayer, locker locks.Locker, p plugin.Plugin, log *logger.Entry) *Sweeper {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		cfg:      cfg,
		calls:    calls,
		orders:   orders,
		replayer: replayer,
		locker:   locker,
		plugin:   p,
		log:      log.WithField("component", "retry-sweep"),
	}
}

// Sweep replays every claimable failed call once. Only one sweep runs at a time
// across processes; a sweep that finds the lease taken returns at once.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	release, ok, err := s.locker.TryAcquire(ctx, locks.JobKey(sweepJob), s.cfg.LeaseTTL)
	if err != nil {
		return report, fmt.Errorf("acquire sweep lease: %w", err)
	}
	if !ok {
		s.log.Info("another sweep holds the lease, skipping")
		report.LeaseHeld = true
		return report, nil
	}
	defer release()

	rows, err := s.calls.ClaimRetryable(ctx, s.cfg.MaxRetries, s.cfg.BatchSize)
	if err != nil {
		return report, err
	}
	report.Claimed = len(rows)
	if len(rows) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	count := func(f func(r *SweepReport)) {
		mu.Lock()
		f(&report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, group := range groupByOrder(rows) {
		group := group
		g.Go(func() error {
			return s.replayGroup(gctx, group, count)
		})
	}
	err = g.Wait()

	s.log.WithFields(map[string]interface{}{
		"claimed":   report.Claimed,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"exhausted": report.Exhausted,
		"skipped":   report.Skipped,
	}).Info("Retry sweep finished")
	return report, err
}

type orderGroup struct {
	orderID uint
	rows    []*model.ExternalCallLog
}

// groupByOrder keeps claim order inside a group. Rows without an order form their
// own group that is replayed without a lock.
func groupByOrder(rows []model.ExternalCallLog) []orderGroup {
	index := map[uint]int{}
	var groups []orderGroup
	for i := range rows {
		var id uint
		if rows[i].OrderID != nil {
			id = *rows[i].OrderID
		}
		at, ok := index[id]
		if !ok {
			at = len(groups)
			index[id] = at
			groups = append(groups, orderGroup{orderID: id})
		}
		groups[at].rows = append(groups[at].rows, &rows[i])
	}
	for _, g := range groups {
		sort.SliceStable(g.rows, func(i, j int) bool { return g.rows[i].ID < g.rows[j].ID })
	}
	return groups
}

// replayGroup only returns an error when the sweep context is done; row failures
// are recorded on the rows.
func (s *Sweeper) replayGroup(ctx context.Context, group orderGroup, count func(func(*SweepReport))) error {
	log := s.log.WithField("order_id", group.orderID)

	if group.orderID != 0 {
		lockCtx, cancel := context.WithTimeout(ctx, s.cfg.OrderLockTimeout)
		unlock, err := s.locker.Acquire(lockCtx, locks.OrderKey(group.orderID), s.cfg.LeaseTTL)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("order is busy, leaving its calls for the next sweep")
			count(func(r *SweepReport) { r.Skipped += len(group.rows) })
			return nil
		}
		defer unlock()
	}

	for _, row := range group.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.replayRow(ctx, row, log, count)
	}
	return nil
}

func (s *Sweeper) replayRow(ctx context.Context, row *model.ExternalCallLog, log *logger.Entry, count func(func(*SweepReport))) {
	log = log.WithFields(map[string]interface{}{
		"call_id":     row.ID,
		"target":      row.Target,
		"endpoint":    row.Endpoint,
		"retry_count": row.RetryCount,
	})

	_, replayErr := s.replayer.Replay(ctx, connectors.Call{Sink: s.calls, Log: log}, row)
	if replayErr == nil {
		if err := s.calls.MarkSucceeded(ctx, row); err != nil {
			s.staleOrFailed(log, err, "mark call succeeded")
			return
		}
		s.flag(ctx, row, nil, []attention.Flag{attention.R5}, log)
		count(func(r *SweepReport) { r.Succeeded++ })
		log.Info("Replay succeeded")
		return
	}

	exhausted, err := s.calls.MarkFailed(ctx, row, s.cfg.MaxRetries, replayErr.Error())
	if err != nil {
		s.staleOrFailed(log, err, "mark call failed")
		return
	}
	if !exhausted {
		count(func(r *SweepReport) { r.Failed++ })
		log.WithError(replayErr).Warn("Replay failed, will retry")
		return
	}

	count(func(r *SweepReport) { r.Exhausted++ })
	log.WithError(replayErr).Error("Replay gave up")
	s.flag(ctx, row, []attention.Flag{attention.R5}, nil, log)
	s.notify(ctx, row, replayErr, log)
}

func (s *Sweeper) staleOrFailed(log *logger.Entry, err error, what string) {
	if errors.Is(err, repository.ErrStaleCallLog) {
		log.Warn("call log changed under the sweep, skipping")
		return
	}
	log.WithError(err).Error("failed to " + what)
}

func (s *Sweeper) flag(ctx context.Context, row *model.ExternalCallLog, add, remove []attention.Flag, log *logger.Entry) {
	if row.OrderID == nil || s.orders == nil {
		return
	}
	if err := s.orders.UpdateAttention(ctx, *row.OrderID, row.ItemNoList(), add, remove); err != nil {
		log.WithError(err).Error("failed to update attention flags")
	}
}

func (s *Sweeper) notify(ctx context.Context, row *model.ExternalCallLog, cause error, log *logger.Entry) {
	if s.plugin == nil {
		return
	}
	mail := plugin.Mail{
		To:      s.plugin.Operators(),
		Subject: fmt.Sprintf("Retry exhausted: %s %s for order %s", row.Target, row.Endpoint, row.OrderNo),
		Body: fmt.Sprintf(
			"Call %d (%s) failed %d times.\nItems: %s\nLast error: %v\nAt: %s",
			row.ID, row.URL, row.RetryCount, strings.Join(row.ItemNoList(), ", "), cause,
			time.Now().UTC().Format(time.RFC3339),
		),
	}
	if err := s.plugin.SendMail(ctx, mail); err != nil {
		log.WithError(err).Error("failed to notify operators")
	}
}
