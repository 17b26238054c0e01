package tracking

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/repository"
	"github.com/appship/engage-api/pkg/messaging"
	"github.com/appship/engage-api/pkg/metrics"
)

// Canonical UUID form only. uuid.Parse is laxer (braces, urn prefix),
// which would let the same message id take several shapes.
var uuidShape = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

const engagementChannel = "engagement"

var (
	ErrInvalidAction   = fmt.Errorf("unrecognized tracking action")
	ErrInvalidRedirect = fmt.Errorf("redirect must be an absolute http or https URL")
)

// TrackRequest carries one decoded tracking callback.
type TrackRequest struct {
	MessageID   string
	Action      model.TrackingAction
	Kind        model.MessageKind
	RedirectURL string
	RateLimited bool
}

type ResultType int

const (
	ResultPixel ResultType = iota
	ResultRedirect
)

// Result tells the handler how to answer the tracked user.
type Result struct {
	Type        ResultType
	RedirectURL string
}

type Service struct {
	repo   repository.TrackingRepository
	broker messaging.Broker
	seen   *cache.Cache
	now    func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo repository.TrackingRepository, broker messaging.Broker, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		broker: broker,
		// Suppresses repeat conditional writes for ids this process
		// already recorded; the database CAS stays the source of truth.
		seen: cache.New(5*time.Minute, 10*time.Minute),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record handles an open or click callback. Validation failures on the
// redirect target or the action surface as errors; everything else —
// malformed ids, rate-limited requests, storage trouble — degrades to a
// no-op write while the response stays exactly what the mail client or
// the clicking user expects.
func (s *Service) Record(ctx context.Context, req TrackRequest) (Result, error) {
	switch req.Action {
	case model.ActionOpen:
		s.persist(ctx, req)
		return Result{Type: ResultPixel}, nil

	case model.ActionClick:
		if err := validateRedirect(req.RedirectURL); err != nil {
			return Result{}, err
		}
		s.persist(ctx, req)
		return Result{Type: ResultRedirect, RedirectURL: req.RedirectURL}, nil

	default:
		return Result{}, ErrInvalidAction
	}
}

func (s *Service) persist(ctx context.Context, req TrackRequest) {
	if req.RateLimited {
		metrics.TrackingRateLimited.Inc()
		return
	}
	if !uuidShape.MatchString(req.MessageID) {
		metrics.TrackingInvalidID.Inc()
		return
	}

	id, err := uuid.Parse(req.MessageID)
	if err != nil {
		metrics.TrackingInvalidID.Inc()
		return
	}

	key := string(req.Kind) + "/" + string(req.Action) + "/" + req.MessageID
	if _, hit := s.seen.Get(key); hit {
		return
	}

	now := s.now()
	var wrote bool
	switch req.Action {
	case model.ActionOpen:
		wrote, err = s.repo.MarkOpened(ctx, req.Kind, id, now)
	case model.ActionClick:
		wrote, err = s.repo.MarkClicked(ctx, req.Kind, id, now)
	}
	if err != nil {
		// Best effort: the pixel or redirect still goes out.
		log.Error().Err(err).
			Str("message_id", req.MessageID).
			Str("action", string(req.Action)).
			Msg("failed to record engagement")
		return
	}

	s.seen.SetDefault(key, struct{}{})
	metrics.TrackingEvents.WithLabelValues(string(req.Kind), string(req.Action)).Inc()

	if wrote {
		s.publish(req, id, now)
	}
}

// publish pushes the event to the broker without blocking the response
// path. Failures are logged and forgotten.
func (s *Service) publish(req TrackRequest, id uuid.UUID, at time.Time) {
	if s.broker == nil {
		return
	}
	event := &model.EngagementEvent{
		MessageID:  id,
		Kind:       req.Kind,
		Action:     req.Action,
		OccurredAt: at,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.broker.Publish(ctx, engagementChannel, event); err != nil {
			log.Warn().Err(err).
				Str("message_id", id.String()).
				Msg("failed to publish engagement event")
		}
	}()
}

func validateRedirect(raw string) error {
	if raw == "" {
		return ErrInvalidRedirect
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidRedirect
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidRedirect
	}
	return nil
}
