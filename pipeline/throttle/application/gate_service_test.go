package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"upload-throttle/pipeline/throttle/domain"
	"upload-throttle/pipeline/throttle/infra"
)

type blockingGate struct{}

func (g *blockingGate) Acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, errors.New("unexpected")
	}
}
func (g *blockingGate) Capacity() int64 { return 1 }
func (g *blockingGate) InUse() int64    { return 1 }

type immediateGate struct {
	mu       sync.Mutex
	capacity int64
	acquired int
	inUse    int64
}

func (g *immediateGate) Acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	if weight > g.capacity {
		return nil, domain.ErrWeightExceedsCapacity
	}
	g.mu.Lock()
	g.acquired++
	g.inUse += weight
	g.mu.Unlock()
	return domain.NewLease(weight, func() {
		g.mu.Lock()
		g.inUse -= weight
		g.mu.Unlock()
	}), nil
}
func (g *immediateGate) Capacity() int64 { return g.capacity }
func (g *immediateGate) InUse() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

type recordingStats struct {
	mu     sync.Mutex
	events []domain.GateEvent
}

func (r *recordingStats) Record(_ context.Context, ev domain.GateEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingStats) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestGateService_Acquire_AllowsWhenNoGate(t *testing.T) {
	svc := GateService{}
	lease, err := svc.Acquire(context.Background(), 3)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	lease.Release()
}

func TestGateService_Acquire_UsesTimeout(t *testing.T) {
	stats := &recordingStats{}
	svc := GateService{Stage: domain.StageFileLoad, Gate: &blockingGate{}, AcquireTimeout: 10 * time.Millisecond, Stats: stats}

	_, err := svc.Acquire(context.Background(), 1)
	if !errors.Is(err, domain.ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
	if k := stats.kinds(); len(k) != 1 || k[0] != domain.EventTimedOut {
		t.Fatalf("expected a single timed_out event, got %v", k)
	}
}

func TestGateService_Acquire_ParentCancelIsNotTimeout(t *testing.T) {
	stats := &recordingStats{}
	svc := GateService{Gate: &blockingGate{}, AcquireTimeout: time.Second, Stats: stats}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Acquire(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if k := stats.kinds(); len(k) != 1 || k[0] != domain.EventCanceled {
		t.Fatalf("expected a single canceled event, got %v", k)
	}
}

func TestGateService_Acquire_NoTimeoutDelegatesToGate(t *testing.T) {
	gate := &immediateGate{capacity: 5}
	svc := GateService{Gate: gate, AcquireTimeout: 0}

	lease, err := svc.Acquire(context.Background(), 2)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if gate.acquired != 1 {
		t.Fatalf("expected gate Acquire to be called once, got %d", gate.acquired)
	}
	if lease.Weight() != 2 {
		t.Fatalf("expected lease weight 2, got %d", lease.Weight())
	}
	lease.Release()
	if gate.InUse() != 0 {
		t.Fatalf("expected weight returned, got %d in use", gate.InUse())
	}
}

func TestGateService_Acquire_RejectsContractViolation(t *testing.T) {
	stats := &recordingStats{}
	svc := GateService{Stage: domain.StageFileLoad, Gate: &immediateGate{capacity: 5}, Stats: stats}

	_, err := svc.Acquire(context.Background(), 6)
	if !errors.Is(err, domain.ErrWeightExceedsCapacity) {
		t.Fatalf("expected ErrWeightExceedsCapacity, got %v", err)
	}
	if k := stats.kinds(); len(k) != 1 || k[0] != domain.EventRejected {
		t.Fatalf("expected a single rejected event, got %v", k)
	}
}

func TestGateService_Do_ReleasesOnError(t *testing.T) {
	gate := &immediateGate{capacity: 1}
	stats := &recordingStats{}
	svc := GateService{Gate: gate, Stats: stats}

	boom := errors.New("boom")
	err := svc.Do(context.Background(), 1, func(ctx context.Context) error {
		if gate.InUse() != 1 {
			t.Errorf("expected weight held inside Do, got %d", gate.InUse())
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if gate.InUse() != 0 {
		t.Fatalf("expected weight released after error, got %d", gate.InUse())
	}
	k := stats.kinds()
	if len(k) != 2 || k[0] != domain.EventAcquired || k[1] != domain.EventReleased {
		t.Fatalf("expected acquired then released, got %v", k)
	}
}

func TestGateService_Do_ReleasesOnPanic(t *testing.T) {
	gate := &immediateGate{capacity: 1}
	svc := GateService{Gate: gate}

	func() {
		defer func() { _ = recover() }()
		_ = svc.Do(context.Background(), 1, func(ctx context.Context) error {
			panic("boom")
		})
	}()

	if gate.InUse() != 0 {
		t.Fatalf("expected weight released after panic, got %d", gate.InUse())
	}
}

// strictStats descarta o evento quando o ctx já acabou, como o go-redis faz.
type strictStats struct {
	recordingStats
}

func (s *strictStats) Record(ctx context.Context, ev domain.GateEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.recordingStats.Record(ctx, ev)
}

func TestGateService_Acquire_RecordsCancelEvenWithDoneContext(t *testing.T) {
	gate, _ := infra.NewWeightedGate(1)
	stats := &strictStats{}
	svc := GateService{Stage: domain.StageCreateChunkCall, Gate: gate, Stats: stats}

	held, err := svc.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected first acquire ok, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := svc.Acquire(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	held.Release()

	k := stats.kinds()
	if len(k) != 3 || k[0] != domain.EventCanceled || k[1] != domain.EventAcquired || k[2] != domain.EventReleased {
		t.Fatalf("expected canceled, acquired, released, got %v", k)
	}
}

func TestGateService_Acquire_ReleasedEventSurvivesCanceledCaller(t *testing.T) {
	gate, _ := infra.NewWeightedGate(1)
	stats := &strictStats{}
	svc := GateService{Gate: gate, Stats: stats}

	ctx, cancel := context.WithCancel(context.Background())
	lease, err := svc.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	cancel()
	lease.Release()

	if k := stats.kinds(); len(k) != 2 {
		t.Fatalf("expected acquired and released despite canceled ctx, got %v", k)
	}
}

// slowStats demora em cada evento acquired e anota o peso em uso naquele momento.
type slowStats struct {
	gate  domain.Gate
	delay time.Duration

	mu    sync.Mutex
	inUse []int64
}

func (s *slowStats) Record(_ context.Context, ev domain.GateEvent) error {
	if ev.Kind != domain.EventAcquired {
		return nil
	}
	s.mu.Lock()
	s.inUse = append(s.inUse, s.gate.InUse())
	s.mu.Unlock()
	time.Sleep(s.delay)
	return nil
}

func TestGateService_Acquire_SlowStatsDoesNotHoldSlot(t *testing.T) {
	gate, _ := infra.NewWeightedGate(1)
	stats := &slowStats{gate: gate, delay: 50 * time.Millisecond}
	svc := GateService{Gate: gate, Stats: stats}

	start := time.Now()
	lease, err := svc.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 25*time.Millisecond {
		t.Fatalf("expected lease without waiting for stats, took %s", elapsed)
	}
	lease.Release()

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.inUse) != 1 || stats.inUse[0] != 0 {
		t.Fatalf("expected acquired event recorded after the slot was freed, got in-use %v", stats.inUse)
	}
}

func TestGateService_Acquire_SnapshotsInUseAtGrant(t *testing.T) {
	gate, _ := infra.NewWeightedGate(5)
	stats := &recordingStats{}
	svc := GateService{Gate: gate, Stats: stats}

	lease, _ := svc.Acquire(context.Background(), 3)
	lease.Release()

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(stats.events))
	}
	if ev := stats.events[0]; ev.Kind != domain.EventAcquired || ev.InUse != 3 {
		t.Fatalf("expected acquired with in-use 3, got %+v", ev)
	}
	if ev := stats.events[1]; ev.Kind != domain.EventReleased || ev.InUse != 0 {
		t.Fatalf("expected released with in-use 0, got %+v", ev)
	}
}

// tryGate conta quantas vezes cada caminho foi usado.
type tryGate struct {
	immediateGate
	tries, full int
}

func (g *tryGate) TryAcquire(weight int64) (*domain.Lease, bool) {
	g.tries++
	l, err := g.immediateGate.Acquire(context.Background(), weight)
	return l, err == nil
}

func (g *tryGate) Acquire(ctx context.Context, weight int64) (*domain.Lease, error) {
	g.full++
	return g.immediateGate.Acquire(ctx, weight)
}

func TestGateService_Acquire_UsesTryAcquireFastPath(t *testing.T) {
	gate := &tryGate{immediateGate: immediateGate{capacity: 2}}
	svc := GateService{Gate: gate, AcquireTimeout: time.Second}

	lease, err := svc.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	lease.Release()
	if gate.tries != 1 || gate.full != 0 {
		t.Fatalf("expected fast path only, got tries=%d full=%d", gate.tries, gate.full)
	}
}

func TestGateService_Acquire_FastPathRespectsDoneContext(t *testing.T) {
	gate, _ := infra.NewWeightedGate(1)
	svc := GateService{Gate: gate}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Acquire(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled with free capacity, got %v", err)
	}
	if gate.InUse() != 0 {
		t.Fatalf("expected nothing acquired, got %d", gate.InUse())
	}
}

func TestGateService_Acquire_FallsBackToQueueWhenFull(t *testing.T) {
	gate, _ := infra.NewWeightedGate(1)
	svc := GateService{Gate: gate}

	held, _ := svc.Acquire(context.Background(), 1)
	got := make(chan *domain.Lease, 1)
	go func() {
		l, err := svc.Acquire(context.Background(), 1)
		if err == nil {
			got <- l
		}
	}()

	select {
	case <-got:
		t.Fatalf("expected second acquire to wait")
	case <-time.After(20 * time.Millisecond):
	}
	held.Release()
	select {
	case l := <-got:
		l.Release()
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting queued acquire")
	}
}
