package drip

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appship/engage-api/internal/email"
	"github.com/appship/engage-api/internal/model"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeLeadRepo struct {
	leads     []*model.Lead
	contacted []uuid.UUID
}

func (r *fakeLeadRepo) ListActive(ctx context.Context) ([]*model.Lead, error) {
	return r.leads, nil
}

func (r *fakeLeadRepo) MarkContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.contacted = append(r.contacted, id)
	return nil
}

type fakeProspectRepo struct {
	prospects []*model.Prospect
	sent      []uuid.UUID
}

func (r *fakeProspectRepo) ListActive(ctx context.Context, maxEmailsSent int) ([]*model.Prospect, error) {
	return r.prospects, nil
}

func (r *fakeProspectRepo) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.sent = append(r.sent, id)
	return nil
}

type fakeLedger struct {
	entries map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]bool)}
}

func ledgerKey(kind model.MessageKind, id uuid.UUID, step string) string {
	return string(kind) + "/" + id.String() + "/" + step
}

func (l *fakeLedger) HasSent(ctx context.Context, kind model.MessageKind, recipientID uuid.UUID, stepID string) (bool, error) {
	return l.entries[ledgerKey(kind, recipientID, stepID)], nil
}

func (l *fakeLedger) Record(ctx context.Context, entry *model.SequenceEntry) error {
	l.entries[ledgerKey(entry.Kind, entry.RecipientID, entry.StepID)] = true
	return nil
}

type fakeTrackingRepo struct {
	created []*model.TrackedMessage
}

func (r *fakeTrackingRepo) CreateMessage(ctx context.Context, msg *model.TrackedMessage) error {
	r.created = append(r.created, msg)
	return nil
}

func (r *fakeTrackingRepo) MarkOpened(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}

func (r *fakeTrackingRepo) MarkClicked(ctx context.Context, kind model.MessageKind, id uuid.UUID, at time.Time) (bool, error) {
	return false, nil
}

type fakeSender struct {
	sent    []email.OutboundMessage
	failFor map[uuid.UUID]error
}

func (s *fakeSender) SendSequenceStep(ctx context.Context, msg email.OutboundMessage) error {
	if err, ok := s.failFor[msg.RecipientID]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	svc       *Service
	leads     *fakeLeadRepo
	prospects *fakeProspectRepo
	ledger    *fakeLedger
	tracking  *fakeTrackingRepo
	sender    *fakeSender
}

func newFixture() *fixture {
	f := &fixture{
		leads:     &fakeLeadRepo{},
		prospects: &fakeProspectRepo{},
		ledger:    newFakeLedger(),
		tracking:  &fakeTrackingRepo{},
		sender:    &fakeSender{failFor: make(map[uuid.UUID]error)},
	}
	f.svc = NewService(f.leads, f.prospects, f.ledger, f.tracking, f.sender,
		WithClock(func() time.Time { return testNow }))
	return f
}

func lead(daysOld int) *model.Lead {
	return &model.Lead{
		ID:        uuid.New(),
		Email:     "lead@example.com",
		Name:      "Lead",
		Status:    model.LeadStatusNew,
		CreatedAt: testNow.AddDate(0, 0, -daysOld),
	}
}

func prospect(daysOld int, lastSent *time.Time) *model.Prospect {
	return &model.Prospect{
		ID:         uuid.New(),
		Email:      "prospect@example.com",
		Name:       "Prospect",
		Status:     model.ProspectStatusPending,
		CreatedAt:  testNow.AddDate(0, 0, -daysOld),
		LastSentAt: lastSent,
	}
}

func TestLeadStepSelection(t *testing.T) {
	t.Run("too new to contact", func(t *testing.T) {
		f := newFixture()
		f.leads.leads = []*model.Lead{lead(1)}

		result, err := f.svc.RunLeadSequence(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Sent)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("ten days old with step 1 sent gets step 2", func(t *testing.T) {
		f := newFixture()
		l := lead(10)
		f.leads.leads = []*model.Lead{l}
		f.ledger.Record(context.Background(), &model.SequenceEntry{
			Kind: model.KindLeadSequence, RecipientID: l.ID, StepID: "step_1", SentAt: testNow,
		})

		result, err := f.svc.RunLeadSequence(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "step_2", f.sender.sent[0].StepID)
	})

	t.Run("twenty days old with steps 1 and 2 sent gets step 3", func(t *testing.T) {
		f := newFixture()
		l := lead(20)
		f.leads.leads = []*model.Lead{l}
		for _, step := range []string{"step_1", "step_2"} {
			f.ledger.Record(context.Background(), &model.SequenceEntry{
				Kind: model.KindLeadSequence, RecipientID: l.ID, StepID: step, SentAt: testNow,
			})
		}

		result, err := f.svc.RunLeadSequence(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "step_3", f.sender.sent[0].StepID)
	})

	t.Run("all steps sent means skipped", func(t *testing.T) {
		f := newFixture()
		l := lead(30)
		f.leads.leads = []*model.Lead{l}
		for _, step := range []string{"step_1", "step_2", "step_3"} {
			f.ledger.Record(context.Background(), &model.SequenceEntry{
				Kind: model.KindLeadSequence, RecipientID: l.ID, StepID: step, SentAt: testNow,
			})
		}

		result, err := f.svc.RunLeadSequence(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Sent)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("no fallback when the highest step is already sent", func(t *testing.T) {
		f := newFixture()
		l := lead(20)
		f.leads.leads = []*model.Lead{l}
		// step_3 sent, step_2 never sent: the scheduler must not
		// resend a lower step.
		f.ledger.Record(context.Background(), &model.SequenceEntry{
			Kind: model.KindLeadSequence, RecipientID: l.ID, StepID: "step_3", SentAt: testNow,
		})

		result, err := f.svc.RunLeadSequence(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Sent)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, f.sender.sent)
	})
}

func TestLeadSendUpdatesState(t *testing.T) {
	f := newFixture()
	l := lead(4)
	f.leads.leads = []*model.Lead{l}

	result, err := f.svc.RunLeadSequence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	sent, err := f.ledger.HasSent(context.Background(), model.KindLeadSequence, l.ID, "step_1")
	require.NoError(t, err)
	assert.True(t, sent, "ledger entry written after send")
	assert.Equal(t, []uuid.UUID{l.ID}, f.leads.contacted)
	require.Len(t, f.tracking.created, 1)
	assert.Equal(t, model.KindLeadSequence, f.tracking.created[0].Kind)
}

func TestColdOutreachPacing(t *testing.T) {
	t.Run("last sent one day ago is suppressed", func(t *testing.T) {
		f := newFixture()
		last := testNow.Add(-24 * time.Hour)
		f.prospects.prospects = []*model.Prospect{prospect(10, &last)}

		result, err := f.svc.RunColdOutreach(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Sent)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("last sent three days ago is eligible", func(t *testing.T) {
		f := newFixture()
		last := testNow.Add(-72 * time.Hour)
		p := prospect(10, &last)
		f.prospects.prospects = []*model.Prospect{p}
		f.ledger.Record(context.Background(), &model.SequenceEntry{
			Kind: model.KindColdOutreach, RecipientID: p.ID, StepID: "step_1", SentAt: last,
		})

		result, err := f.svc.RunColdOutreach(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "step_2", f.sender.sent[0].StepID)
	})

	t.Run("already sent today is suppressed even after a long gap", func(t *testing.T) {
		f := newFixture()
		// Earlier the same calendar day, more than 48h is irrelevant:
		// the same-day check fires first.
		last := testNow.Add(-2 * time.Hour)
		f.prospects.prospects = []*model.Prospect{prospect(10, &last)}

		result, err := f.svc.RunColdOutreach(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Sent)
		assert.Equal(t, 1, result.Skipped)
	})

	t.Run("never sent is not suppressed", func(t *testing.T) {
		f := newFixture()
		f.prospects.prospects = []*model.Prospect{prospect(5, nil)}

		result, err := f.svc.RunColdOutreach(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Sent)
	})
}

func TestBatchResilience(t *testing.T) {
	f := newFixture()
	leads := make([]*model.Lead, 5)
	for i := range leads {
		leads[i] = lead(4)
	}
	f.leads.leads = leads
	f.sender.failFor[leads[2].ID] = fmt.Errorf("smtp unavailable")

	result, err := f.svc.RunLeadSequence(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Sent)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], leads[2].ID.String())
	assert.Contains(t, result.Errors[0], "smtp unavailable")

	// The failed recipient has no ledger entry and stays eligible.
	sent, err := f.ledger.HasSent(context.Background(), model.KindLeadSequence, leads[2].ID, "step_1")
	require.NoError(t, err)
	assert.False(t, sent)
	for _, i := range []int{0, 1, 3, 4} {
		sent, err := f.ledger.HasSent(context.Background(), model.KindLeadSequence, leads[i].ID, "step_1")
		require.NoError(t, err)
		assert.True(t, sent)
	}
}

func TestSenderTimeoutFailsRecipientOnly(t *testing.T) {
	f := newFixture()
	f.svc.sendTimeout = 10 * time.Millisecond

	slow := lead(4)
	ok := lead(4)
	f.leads.leads = []*model.Lead{slow, ok}
	f.sender.failFor[slow.ID] = context.DeadlineExceeded

	result, err := f.svc.RunLeadSequence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, result.Errors, 1)
}
