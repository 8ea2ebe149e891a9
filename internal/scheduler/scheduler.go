// Package scheduler periodically publishes active resumes again.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-toucher/internal/headhunter"
	"github.com/spigell/hh-toucher/internal/lock"
	"github.com/spigell/hh-toucher/internal/logger"
	"github.com/spigell/hh-toucher/internal/notifier"
	"github.com/spigell/hh-toucher/internal/storage"
	"github.com/spigell/hh-toucher/internal/utils"
)

const (
	lockKey        = "tick"
	defaultWorkers = 4
	defaultLockTTL = time.Hour
)

// ErrTickInProgress is returned when a tick is requested while another one runs.
var ErrTickInProgress = errors.New("tick is already in progress")

// Config tunes the scheduler.
type Config struct {
	// Workers bounds how many token groups are processed at once.
	Workers int
	// OnlyDue asks the store for resumes that can be published now (or expire) only.
	OnlyDue bool
	// LockTTL bounds how long a crashed instance keeps the distributed lock.
	LockTTL time.Duration
}

// Deps aggregates the collaborators of the scheduler.
type Deps struct {
	Store    storage.Store
	Connect  Connector
	Notifier notifier.Notifier
	// Locker is optional. Without it ticks are serialized inside the process only.
	Locker lock.Locker
	Logger *zap.Logger
	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

type Scheduler struct {
	cfg  Config
	deps Deps

	running sync.Mutex
	last    atomic.Pointer[Report]
}

func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Connect == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	return &Scheduler{cfg: cfg, deps: deps}, nil
}

// LastReport returns the report of the latest finished tick or nil.
func (s *Scheduler) LastReport() *Report {
	return s.last.Load()
}

// Run ticks right away and then every interval until ctx is done.
// A tick that fails is logged and does not stop the loop.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	for {
		if _, err := s.Tick(ctx); err != nil {
			switch {
			case errors.Is(err, ErrTickInProgress):
				s.deps.Logger.Warn("skipping tick", zap.String("reason", err.Error()))
			case ctx.Err() != nil:
				return nil
			default:
				s.deps.Logger.Error("tick failed", zap.Error(err))
			}
		}

		s.deps.Logger.Debug("waiting for the next tick", zap.Duration("interval", interval))

		if err := utils.WaitFor(ctx, interval); err != nil {
			return nil
		}
	}
}

// Tick runs one sweep over all active resumes.
func (s *Scheduler) Tick(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrTickInProgress
	}
	defer s.running.Unlock()

	if s.deps.Locker != nil {
		lease, err := s.deps.Locker.Acquire(ctx, lockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return nil, ErrTickInProgress
			}
			return nil, fmt.Errorf("acquire tick lock: %w", err)
		}
		defer func() {
			// The tick context may be cancelled already.
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.deps.Logger.Warn("releasing tick lock", zap.Error(err))
			}
		}()
	}

	now := s.deps.Now()
	report := newReport(uuid.NewString(), now)
	log := s.deps.Logger.With(zap.String("tick_id", report.ID))

	filter := storage.ActiveFilter{}
	if s.cfg.OnlyDue {
		filter.DueBy = now
	}

	resumes, err := s.deps.Store.ListActiveResumes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing active resumes: %w", err)
	}

	users := s.loadOwners(ctx, log, resumes)
	groups, orphans := GroupByToken(resumes, users)

	report.Groups = len(groups)
	report.Resumes = len(resumes)
	report.Outcomes[Skipped] += len(orphans)

	log.Info("tick started",
		zap.Int("resumes", len(resumes)),
		zap.Int("groups", len(groups)),
		zap.Int("orphans", len(orphans)),
		zap.Bool("only_due", s.cfg.OnlyDue),
	)

	results := make([]groupResult, len(groups))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			results[i] = s.processGroup(ctx, log, group, now)
			return nil
		})
	}

	// Groups never fail each other, so there is nothing to return here.
	_ = g.Wait()

	for _, r := range results {
		report.merge(r)
	}
	report.FinishedAt = s.deps.Now()

	fields := []zap.Field{zap.Duration("duration", report.Duration()), zap.Int("auth_failures", report.AuthFailures)}
	for _, o := range []Outcome{Touched, RateLimited, Rejected, Failed, Expired, Skipped} {
		fields = append(fields, zap.Int(string(o), report.Outcomes[o]))
	}
	log.Info("tick finished", fields...)

	s.last.Store(report)

	return report, ctx.Err()
}

// loadOwners fetches the owner of every resume once. Owners that can not be
// loaded are left out, so their resumes end up as orphans.
func (s *Scheduler) loadOwners(ctx context.Context, log *zap.Logger, resumes []*storage.Resume) map[int64]*storage.User {
	users := make(map[int64]*storage.User)
	failed := make(map[int64]struct{})

	for _, r := range resumes {
		if _, ok := users[r.UserID]; ok {
			continue
		}
		if _, ok := failed[r.UserID]; ok {
			continue
		}

		user, err := s.deps.Store.GetUser(ctx, r.UserID)
		if err != nil {
			failed[r.UserID] = struct{}{}
			log.Error("loading resume owner", zap.Int64("user_id", r.UserID), zap.Error(err))
			continue
		}
		users[r.UserID] = user
	}

	return users
}

func (s *Scheduler) processGroup(ctx context.Context, log *zap.Logger, group *TokenGroup, now time.Time) groupResult {
	var result groupResult

	log = log.With(zap.Int64s("user_ids", group.UserIDs), logger.Token(group.Token))

	pending := make([]*storage.Resume, 0, len(group.Resumes))
	for _, r := range group.Resumes {
		if r.Expired(now) {
			result.add(s.expire(ctx, log, r), 1)
			continue
		}
		pending = append(pending, r)
	}

	if len(pending) == 0 {
		return result
	}

	if group.Token == "" {
		log.Warn("skipping resumes of users without token", zap.Int("resumes", len(pending)))
		result.add(Skipped, len(pending))
		return result
	}

	session, err := s.deps.Connect(ctx, group.Token)
	if err != nil {
		if errors.Is(err, headhunter.ErrAuth) {
			log.Warn("token rejected, skipping group", zap.Error(err), zap.Int("resumes", len(pending)))
			result.authFailures++
		} else {
			log.Error("opening api session", zap.Error(err), zap.Int("resumes", len(pending)))
		}
		result.add(Skipped, len(pending))
		return result
	}
	defer session.Close()

	for i, r := range pending {
		if ctx.Err() != nil {
			result.add(Skipped, len(pending)-i)
			break
		}

		outcome, authErr := s.touch(ctx, log, session, r)
		if authErr != nil {
			log.Warn("token rejected while publishing, skipping the rest of the group",
				zap.Error(authErr), zap.Int("resumes", len(pending)-i))
			result.authFailures++
			result.add(Skipped, len(pending)-i)
			break
		}
		result.add(outcome, 1)
	}

	return result
}

// expire deactivates the resume first and notifies afterwards, so a failed
// write is retried next tick without a duplicate message.
func (s *Scheduler) expire(ctx context.Context, log *zap.Logger, r *storage.Resume) Outcome {
	log = log.With(zap.String("resume_id", r.ID), zap.String("title", r.Title), zap.Time("until", r.Until))

	r.Deactivate()
	if err := s.deps.Store.UpdateResume(ctx, r); err != nil {
		log.Error("deactivating expired resume", zap.Error(err))
		return Failed
	}

	log.Info("subscription expired, resume deactivated")

	if err := s.deps.Notifier.Notify(ctx, r.UserID, notifier.Message{Kind: notifier.ResumeExpired, Title: r.Title}); err != nil {
		log.Error("notifying about expired resume", zap.Int64("user_id", r.UserID), zap.Error(err))
	}

	return Expired
}

// touch publishes one resume. A non-nil error means the token was rejected.
func (s *Scheduler) touch(ctx context.Context, log *zap.Logger, session Session, r *storage.Resume) (Outcome, error) {
	log = log.With(zap.String("resume_id", r.ID), zap.String("title", r.Title))

	result, err := session.TouchResume(ctx, r.ID)
	switch {
	case errors.Is(err, headhunter.ErrAuth):
		return Skipped, err
	case errors.Is(err, headhunter.ErrResumeUpdate):
		log.Warn("resume can not be published, will retry next tick", zap.Error(err))
		return Rejected, nil
	case err != nil:
		log.Error("publishing resume", zap.Error(err))
		return Failed, nil
	}

	var outcome Outcome
	switch result.Outcome {
	case headhunter.Updated:
		r.Title = result.Resume.Title
		r.Status = result.Resume.Status
		r.Access = result.Resume.Access
		r.NextPublishAt = result.Resume.NextPublishAt
		outcome = Touched
	case headhunter.RateLimited:
		r.NextPublishAt = result.Resume.NextPublishAt
		outcome = RateLimited
	default:
		log.Error("unknown publish outcome", zap.Stringer("outcome", result.Outcome))
		return Failed, nil
	}

	if err := s.deps.Store.UpdateResume(ctx, r); err != nil {
		log.Error("saving published resume", zap.Error(err))
		return Failed, nil
	}

	if outcome == Touched {
		log.Info("resume updated", zap.Time("next_publish_at", r.NextPublishAt))
	} else {
		log.Info("too often, rescheduled", zap.Time("next_publish_at", r.NextPublishAt))
	}

	return outcome, nil
}
