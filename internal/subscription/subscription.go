// Package subscription implements what a user does through the bot: authorize
// with a token, pick resumes to promote and stop promoting them.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/headhunter"
	"github.com/spigell/hh-toucher/internal/logger"
	"github.com/spigell/hh-toucher/internal/notifier"
	"github.com/spigell/hh-toucher/internal/storage"
)

const DefaultPeriod = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoResumes    = errors.New("no resumes available")
	ErrTokenMissing = errors.New("user has not sent a token yet")
)

// API is the part of the hh.ru client used here.
type API interface {
	Me() headhunter.Me
	ListResumes(ctx context.Context) ([]*headhunter.Resume, error)
	GetResume(ctx context.Context, id string) (*headhunter.Resume, error)
	Close()
}

// Dialer opens an API session for the token.
type Dialer func(ctx context.Context, token string) (API, error)

// HeadHunter returns a Dialer backed by the real API client.
func HeadHunter(logger *zap.Logger, opts *headhunter.Options) Dialer {
	return func(ctx context.Context, token string) (API, error) {
		client, err := headhunter.New(ctx, logger, token, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type Options struct {
	// Period is how long a subscription lasts. Defaults to DefaultPeriod.
	Period time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

type Service struct {
	store    storage.Store
	dial     Dialer
	notifier notifier.Notifier
	logger   *zap.Logger
	period   time.Duration
	now      func() time.Time
}

func New(store storage.Store, dial Dialer, n notifier.Notifier, opts Options) *Service {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:    store,
		dial:     dial,
		notifier: n,
		logger:   opts.Logger,
		period:   opts.Period,
		now:      opts.Now,
	}
}

// Start greets the user and waits for a token. Known users are asked again.
func (s *Service) Start(ctx context.Context, userID int64) (*storage.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user, err = s.store.CreateUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("creating user %d: %w", userID, err)
		}
	case err != nil:
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	default:
		user.AwaitingToken = true
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("updating user %d: %w", userID, err)
		}
	}

	s.notify(ctx, userID, notifier.Message{Kind: notifier.Welcome})

	return user, nil
}

// SubmitToken checks the token against the API, stores it with the profile and
// returns the resumes of the account.
func (s *Service) SubmitToken(ctx context.Context, userID int64, raw string) ([]*headhunter.Resume, error) {
	log := s.logger.With(zap.Int64("user_id", userID))

	token, err := ValidateToken(raw)
	if err != nil {
		log.Info("token does not match the pattern")
		s.notify(ctx, userID, notifier.Message{Kind: notifier.TokenInvalid})
		return nil, err
	}

	user, err := s.ensureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	api, err := s.dial(ctx, token)
	if err != nil {
		if errors.Is(err, headhunter.ErrAuth) {
			log.Info("token rejected by the api", logger.Token(token))
			s.notify(ctx, userID, notifier.Message{Kind: notifier.TokenInvalid})
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("checking token: %w", err)
	}
	defer api.Close()

	resumes, err := api.ListResumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}

	me := api.Me()
	user.Token = token
	user.FirstName = me.FirstName
	user.LastName = me.LastName
	user.Email = me.Email
	user.AwaitingToken = false

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	log.Info("token saved", logger.Token(token), zap.Int("resumes", len(resumes)))

	if len(resumes) == 0 {
		s.notify(ctx, userID, notifier.Message{Kind: notifier.NoResumesAvailable})
		return nil, ErrNoResumes
	}

	return resumes, nil
}

// Resumes lists the resumes of the account with the stored token.
func (s *Service) Resumes(ctx context.Context, userID int64) ([]*headhunter.Resume, error) {
	api, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer api.Close()

	resumes, err := api.ListResumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing resumes: %w", err)
	}
	if len(resumes) == 0 {
		return nil, ErrNoResumes
	}

	return resumes, nil
}

// Activate starts or prolongs the promotion of a resume of the user.
func (s *Service) Activate(ctx context.Context, userID int64, resumeID string) (*storage.Resume, error) {
	log := s.logger.With(zap.Int64("user_id", userID), zap.String("resume_id", resumeID))

	api, err := s.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer api.Close()

	remote, err := api.GetResume(ctx, resumeID)
	if err != nil {
		if errors.Is(err, headhunter.ErrAuth) {
			// hh.ru answers 403/404 for resumes of other accounts.
			s.notify(ctx, userID, notifier.Message{Kind: notifier.ResumeNotFound})
			return nil, fmt.Errorf("resume %s: %w", resumeID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching resume %s: %w", resumeID, err)
	}

	existing, err := s.store.GetResume(ctx, resumeID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// First activation.
	case err != nil:
		return nil, fmt.Errorf("loading resume %s: %w", resumeID, err)
	case existing.UserID != userID:
		s.notify(ctx, userID, notifier.Message{Kind: notifier.ResumeNotFound})
		return nil, fmt.Errorf("resume %s: %w", resumeID, storage.ErrNotFound)
	}

	resume := &storage.Resume{
		ID:            remote.ID,
		UserID:        userID,
		Title:         remote.Title,
		Status:        remote.Status,
		Access:        remote.Access,
		NextPublishAt: remote.NextPublishAt,
	}
	resume.Activate(s.now(), s.period)

	if err := s.store.UpsertResume(ctx, resume); err != nil {
		return nil, fmt.Errorf("saving resume %s: %w", resumeID, err)
	}

	log.Info("resume activated", zap.String("title", resume.Title), zap.Time("until", resume.Until))

	s.notify(ctx, userID, notifier.Message{Kind: notifier.ResumeSelected, Title: resume.Title})

	return resume, nil
}

// Deactivate stops the promotion. Resumes of other users look missing.
func (s *Service) Deactivate(ctx context.Context, userID int64, resumeID string) (*storage.Resume, error) {
	resume, err := s.store.GetResume(ctx, resumeID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading resume %s: %w", resumeID, err)
	}
	if err != nil || resume.UserID != userID {
		s.notify(ctx, userID, notifier.Message{Kind: notifier.ResumeNotFound})
		return nil, fmt.Errorf("resume %s: %w", resumeID, storage.ErrNotFound)
	}

	resume.Deactivate()
	if err := s.store.UpdateResume(ctx, resume); err != nil {
		return nil, fmt.Errorf("saving resume %s: %w", resumeID, err)
	}

	s.logger.Info("resume deactivated", zap.Int64("user_id", userID), zap.String("resume_id", resumeID))

	return resume, nil
}

// ListActive returns the resumes of the user being promoted.
func (s *Service) ListActive(ctx context.Context, userID int64) ([]*storage.Resume, error) {
	resumes, err := s.store.ListActiveResumes(ctx, storage.ActiveFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("listing active resumes of %d: %w", userID, err)
	}
	return resumes, nil
}

func (s *Service) ensureUser(ctx context.Context, userID int64) (*storage.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		user, err = s.store.CreateUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	return user, nil
}

func (s *Service) session(ctx context.Context, userID int64) (API, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", userID, err)
	}
	if !user.HasToken() {
		return nil, ErrTokenMissing
	}

	api, err := s.dial(ctx, user.Token)
	if err != nil {
		if errors.Is(err, headhunter.ErrAuth) {
			s.notify(ctx, userID, notifier.Message{Kind: notifier.TokenInvalid})
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("opening api session: %w", err)
	}

	return api, nil
}

// notify never fails the operation: the state is already saved.
func (s *Service) notify(ctx context.Context, userID int64, msg notifier.Message) {
	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		s.logger.Error("sending notification", zap.Int64("user_id", userID), zap.String("kind", string(msg.Kind)), zap.Error(err))
	}
}
