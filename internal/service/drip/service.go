package drip

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/appship/engage-api/internal/email"
	"github.com/appship/engage-api/internal/model"
	"github.com/appship/engage-api/internal/repository"
	"github.com/appship/engage-api/pkg/metrics"
)

// minOutreachGap is the pacing floor between cold-outreach sends to the
// same prospect.
const minOutreachGap = 48 * time.Hour

type Service struct {
	leads     repository.LeadRepository
	prospects repository.ProspectRepository
	ledger    repository.SequenceRepository
	tracking  repository.TrackingRepository
	sender    email.Sender

	sendTimeout time.Duration
	now         func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) { s.sendTimeout = d }
}

func NewService(
	leads repository.LeadRepository,
	prospects repository.ProspectRepository,
	ledger repository.SequenceRepository,
	tracking repository.TrackingRepository,
	sender email.Sender,
	opts ...Option,
) *Service {
	s := &Service{
		leads:       leads,
		prospects:   prospects,
		ledger:      ledger,
		tracking:    tracking,
		sender:      sender,
		sendTimeout: 15 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunLeadSequence processes one nurture pass over all active leads.
// Recipients are handled sequentially; a failure is recorded in the
// result and never aborts the batch.
func (s *Service) RunLeadSequence(ctx context.Context) (*model.RunResult, error) {
	timer := time.Now()
	defer func() {
		metrics.DripRunDuration.WithLabelValues(string(model.KindLeadSequence)).Observe(time.Since(timer).Seconds())
	}()

	leads, err := s.leads.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	result := &model.RunResult{Errors: []string{}}
	for _, lead := range leads {
		s.processLead(ctx, lead, result)
	}

	log.Info().
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("lead sequence run complete")
	return result, nil
}

func (s *Service) processLead(ctx context.Context, lead *model.Lead, result *model.RunResult) {
	step, err := s.eligibleStep(ctx, model.KindLeadSequence, lead.ID, lead.CreatedAt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("lead %s: %v", lead.ID, err))
		metrics.DripErrors.WithLabelValues(string(model.KindLeadSequence)).Inc()
		return
	}
	if step == "" {
		result.Skipped++
		return
	}

	msg := email.OutboundMessage{
		MessageID:   uuid.New(),
		RecipientID: lead.ID,
		Email:       lead.Email,
		Name:        lead.Name,
		Kind:        model.KindLeadSequence,
		StepID:      step,
	}
	if err := s.dispatch(ctx, msg); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("lead %s: %v", lead.ID, err))
		metrics.DripErrors.WithLabelValues(string(model.KindLeadSequence)).Inc()
		return
	}

	now := s.now()
	s.recordSend(ctx, msg, now)
	if err := s.leads.MarkContacted(ctx, lead.ID, now); err != nil {
		log.Error().Err(err).Str("lead_id", lead.ID.String()).Msg("failed to update lead after send")
	}

	result.Sent++
	metrics.DripSent.WithLabelValues(string(model.KindLeadSequence)).Inc()
}

// RunColdOutreach processes one outreach pass over all active
// prospects, applying the pacing rules on top of step eligibility.
func (s *Service) RunColdOutreach(ctx context.Context) (*model.RunResult, error) {
	timer := time.Now()
	defer func() {
		metrics.DripRunDuration.WithLabelValues(string(model.KindColdOutreach)).Observe(time.Since(timer).Seconds())
	}()

	prospects, err := s.prospects.ListActive(ctx, model.MaxOutreachEmails)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prospects: %w", err)
	}

	result := &model.RunResult{Errors: []string{}}
	for _, prospect := range prospects {
		s.processProspect(ctx, prospect, result)
	}

	log.Info().
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("cold outreach run complete")
	return result, nil
}

func (s *Service) processProspect(ctx context.Context, prospect *model.Prospect, result *model.RunResult) {
	if s.suppressedByPacing(prospect) {
		result.Skipped++
		return
	}

	step, err := s.eligibleStep(ctx, model.KindColdOutreach, prospect.ID, prospect.CreatedAt)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("prospect %s: %v", prospect.ID, err))
		metrics.DripErrors.WithLabelValues(string(model.KindColdOutreach)).Inc()
		return
	}
	if step == "" {
		result.Skipped++
		return
	}

	msg := email.OutboundMessage{
		MessageID:   uuid.New(),
		RecipientID: prospect.ID,
		Email:       prospect.Email,
		Name:        prospect.Name,
		Kind:        model.KindColdOutreach,
		StepID:      step,
	}
	if err := s.dispatch(ctx, msg); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("prospect %s: %v", prospect.ID, err))
		metrics.DripErrors.WithLabelValues(string(model.KindColdOutreach)).Inc()
		return
	}

	now := s.now()
	s.recordSend(ctx, msg, now)
	if err := s.prospects.MarkSent(ctx, prospect.ID, now); err != nil {
		log.Error().Err(err).Str("prospect_id", prospect.ID.String()).Msg("failed to update prospect after send")
	}

	result.Sent++
	metrics.DripSent.WithLabelValues(string(model.KindColdOutreach)).Inc()
}

// suppressedByPacing holds back a prospect who was already messaged on
// the current calendar day, or fewer than two full days ago. The
// first check looks redundant next to the second but diverges when a
// run fires twice in one day after a longer gap; both are kept.
func (s *Service) suppressedByPacing(prospect *model.Prospect) bool {
	if prospect.LastSentAt == nil {
		return false
	}
	now := s.now()
	last := *prospect.LastSentAt

	ly, lm, ld := last.Date()
	ny, nm, nd := now.Date()
	if ly == ny && lm == nm && ld == nd {
		return true
	}

	return now.Sub(last) < minOutreachGap
}

// eligibleStep picks the single highest step whose day threshold the
// recipient has reached. If that step is already in the ledger the
// recipient is done for this run; there is no fallback to a lower
// step. An empty step id means skip.
func (s *Service) eligibleStep(ctx context.Context, kind model.MessageKind, recipientID uuid.UUID, createdAt time.Time) (string, error) {
	elapsed := int(s.now().Sub(createdAt).Hours() / 24)

	for i := len(model.SequenceSteps) - 1; i >= 0; i-- {
		step := model.SequenceSteps[i]
		if elapsed < step.AfterDays {
			continue
		}
		sent, err := s.ledger.HasSent(ctx, kind, recipientID, step.ID)
		if err != nil {
			return "", fmt.Errorf("ledger lookup for %s: %w", step.ID, err)
		}
		if sent {
			return "", nil
		}
		return step.ID, nil
	}
	return "", nil
}

// dispatch mints the tracked message and hands it to the sender under
// a timeout. A timed-out send fails this recipient only.
func (s *Service) dispatch(ctx context.Context, msg email.OutboundMessage) error {
	tracked := &model.TrackedMessage{
		ID:          msg.MessageID,
		Kind:        msg.Kind,
		RecipientID: msg.RecipientID,
		CreatedAt:   s.now(),
	}
	if err := s.tracking.CreateMessage(ctx, tracked); err != nil {
		return fmt.Errorf("failed to create tracked message: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.sender.SendSequenceStep(sendCtx, msg); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// recordSend appends the ledger entry right after a confirmed send.
// A failure here is logged only: the message went out, and the ledger
// write is retried implicitly by the unique constraint being the final
// arbiter.
func (s *Service) recordSend(ctx context.Context, msg email.OutboundMessage, at time.Time) {
	entry := &model.SequenceEntry{
		Kind:        msg.Kind,
		RecipientID: msg.RecipientID,
		StepID:      msg.StepID,
		SentAt:      at,
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("recipient_id", msg.RecipientID.String()).
			Str("step_id", msg.StepID).
			Msg("failed to record sequence ledger entry")
	}
}
