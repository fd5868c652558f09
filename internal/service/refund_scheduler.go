package service

import (
	"context"
	"sync"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundFunc refunds one charge.
type RefundFunc func(ctx context.Context, chargeID string) error

// RefundTask is the handle for one scheduled refund. It runs detached from
// the request that created it.
type RefundTask struct {
	AuthorizationID uuid.UUID
	ChargeID        string
	ScheduledAt     time.Time
	Delay           time.Duration

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
	errCh       chan error
	err         error
}

func newRefundTask(authID uuid.UUID, chargeID string, delay time.Duration, now time.Time) *RefundTask {
	return &RefundTask{
		AuthorizationID: authID,
		ChargeID:        chargeID,
		ScheduledAt:     now,
		Delay:           delay,
		trigger:         make(chan struct{}),
		done:            make(chan struct{}),
		errCh:           make(chan error, 1),
	}
}

// Trigger runs the refund now instead of waiting out the delay.
func (t *RefundTask) Trigger() {
	t.triggerOnce.Do(func() { close(t.trigger) })
}

// Done is closed once the refund attempt finished.
func (t *RefundTask) Done() <-chan struct{} {
	return t.done
}

// Err delivers the refund outcome exactly once; nil on success.
func (t *RefundTask) Err() <-chan error {
	return t.errCh
}

// Wait blocks until the refund finished or ctx is done.
func (t *RefundTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *RefundTask) finish(err error) {
	t.err = err
	t.errCh <- err
	close(t.done)
}

// RefundScheduler owns pending auto-refunds. One task exists per charge.
type RefundScheduler struct {
	delay   time.Duration
	timeout time.Duration
	refund  RefundFunc
	now     func() time.Time

	mu    sync.Mutex
	tasks map[string]*RefundTask
	wg    sync.WaitGroup
}

func NewRefundScheduler(delay time.Duration, refund RefundFunc) *RefundScheduler {
	if delay < 0 {
		delay = 0
	}
	return &RefundScheduler{
		delay:   delay,
		timeout: 30 * time.Second,
		refund:  refund,
		now:     time.Now,
		tasks:   make(map[string]*RefundTask),
	}
}

// Schedule returns the pending task for chargeID, creating it if needed.
func (s *RefundScheduler) Schedule(authID uuid.UUID, chargeID string) *RefundTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[chargeID]; ok {
		return t
	}

	t := newRefundTask(authID, chargeID, s.delay, s.now())
	s.tasks[chargeID] = t
	s.wg.Add(1)
	go s.run(t)

	logger.Info("Auto-refund scheduled",
		zap.String("authorization_id", authID.String()),
		zap.String("charge_id", chargeID),
		zap.Duration("delay", s.delay),
	)
	return t
}

// Pending reports the number of refunds not yet finished.
func (s *RefundScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *RefundScheduler) run(t *RefundTask) {
	defer s.wg.Done()

	timer := time.NewTimer(t.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-t.trigger:
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.refund(ctx, t.ChargeID)
	if err != nil {
		logger.Error("Auto-refund failed",
			zap.String("authorization_id", t.AuthorizationID.String()),
			zap.String("charge_id", t.ChargeID),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	delete(s.tasks, t.ChargeID)
	s.mu.Unlock()

	t.finish(err)
}

// Shutdown fires every pending refund immediately and waits for them.
func (s *RefundScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.Trigger()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
