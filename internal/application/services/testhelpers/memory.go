package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/domain"
)

// MemoryPaymentStore is an in-process PaymentStore with the same conditional
// semantics as the database-backed stores.
type MemoryPaymentStore struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
	tokens   *MemoryTokenStore

	SetIssuanceErr error
}

var _ application.PaymentStore = (*MemoryPaymentStore)(nil)

// NewMemoryPaymentStore links to tokens so FindStale can see which
// successful payments still lack a token.
func NewMemoryPaymentStore(tokens *MemoryTokenStore) *MemoryPaymentStore {
	return &MemoryPaymentStore{
		payments: make(map[string]domain.Payment),
		tokens:   tokens,
	}
}

func (s *MemoryPaymentStore) Insert(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.Reference]; ok {
		return domain.NewDuplicateReferenceError(p.Reference)
	}
	s.payments[p.Reference] = clonePayment(p)
	return nil
}

func (s *MemoryPaymentStore) FindByReference(_ context.Context, reference string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[reference]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(reference)
	}
	out := clonePayment(&p)
	return &out, nil
}

func (s *MemoryPaymentStore) UpdateStatusIfPending(_ context.Context, reference string, status domain.PaymentStatus, paidAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[reference]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = status
	p.PaidAt = paidAt
	p.UpdatedAt = time.Now().UTC()
	s.payments[reference] = p
	return true, nil
}

func (s *MemoryPaymentStore) SetIssuance(_ context.Context, reference string, issuance domain.Issuance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SetIssuanceErr != nil {
		return s.SetIssuanceErr
	}

	p, ok := s.payments[reference]
	if !ok {
		return domain.NewPaymentNotFoundError(reference)
	}
	p.Metadata.IssuanceResult = &issuance
	s.payments[reference] = p
	return nil
}

func (s *MemoryPaymentStore) FindStale(_ context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Payment
	for _, p := range s.payments {
		stale := p.Status == domain.StatusPending && p.CreatedAt.Before(olderThan)
		awaitingToken := p.Status == domain.StatusSuccess && s.tokens != nil && !s.tokens.has(p.Reference)
		if stale || awaitingToken {
			c := clonePayment(&p)
			out = append(out, &c)
		}
	}

	// Payments already paid for come first so pending ones cannot crowd them out.
	sort.Slice(out, func(i, j int) bool {
		iPaid, jPaid := out[i].Status == domain.StatusSuccess, out[j].Status == domain.StatusSuccess
		if iPaid != jPaid {
			return iPaid
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Put stores p as-is, bypassing Insert checks. Tests use it to seed any state.
func (s *MemoryPaymentStore) Put(p *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.Reference] = clonePayment(p)
}

func clonePayment(p *domain.Payment) domain.Payment {
	c := *p
	if p.PaidAt != nil {
		t := *p.PaidAt
		c.PaidAt = &t
	}
	if p.Metadata.IssuanceResult != nil {
		i := *p.Metadata.IssuanceResult
		c.Metadata.IssuanceResult = &i
	}
	return c
}

// MemoryTokenStore is an in-process TokenStore enforcing unique reference and
// unique value.
type MemoryTokenStore struct {
	mu          sync.Mutex
	byReference map[string]domain.Token
	byValue     map[string]string
}

var _ application.TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		byReference: make(map[string]domain.Token),
		byValue:     make(map[string]string),
	}
}

func (s *MemoryTokenStore) InsertIfAbsent(_ context.Context, t *domain.Token) (*domain.Token, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byReference[t.Reference]; ok {
		out := existing
		return &out, false, nil
	}
	if _, ok := s.byValue[t.Value]; ok {
		return nil, false, domain.NewTokenCollisionError(nil)
	}

	s.byReference[t.Reference] = *t
	s.byValue[t.Value] = t.Reference
	out := *t
	return &out, true, nil
}

func (s *MemoryTokenStore) FindByReference(_ context.Context, reference string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byReference[reference]
	if !ok {
		return nil, domain.NewTokenNotFoundError(reference)
	}
	return &t, nil
}

func (s *MemoryTokenStore) FindByValue(_ context.Context, value string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.byValue[value]
	if !ok {
		return nil, domain.NewTokenNotFoundError(value)
	}
	t := s.byReference[ref]
	return &t, nil
}

// Count returns the number of stored tokens.
func (s *MemoryTokenStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byReference)
}

func (s *MemoryTokenStore) has(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byReference[reference]
	return ok
}

// CollidingTokenStore rejects the first Collisions inserts as value
// collisions before delegating to the wrapped store.
type CollidingTokenStore struct {
	application.TokenStore

	mu         sync.Mutex
	Collisions int
	Rejected   int
}

func (s *CollidingTokenStore) InsertIfAbsent(ctx context.Context, t *domain.Token) (*domain.Token, bool, error) {
	s.mu.Lock()
	if s.Rejected < s.Collisions {
		s.Rejected++
		s.mu.Unlock()
		return nil, false, domain.NewTokenCollisionError(nil)
	}
	s.mu.Unlock()
	return s.TokenStore.InsertIfAbsent(ctx, t)
}

// PublishedEvent is one call recorded by RecordingPublisher.
type PublishedEvent struct {
	Type        string
	AggregateID string
	Data        any
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (p *RecordingPublisher) Publish(_ context.Context, eventType, aggregateID string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Type: eventType, AggregateID: aggregateID, Data: data})
	return nil
}

func (p *RecordingPublisher) Events(eventType string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []PublishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
