package health

import (
	"context"
	"sync"
	"time"
)

// registryState is the Registry's tri-state lifecycle.
type registryState int

const (
	stateInitialising registryState = iota
	stateRunning
	stateStopped
)

// Observer is notified whenever a runner's structural status changes.
// Observer invocations happen on the registry's dedicated publisher
// goroutine; a panicking observer is recovered and does not affect other
// observers or the queue.
type Observer func(name string, result *CheckResult)

type publishEvent struct {
	name   string
	result *CheckResult
}

// ServiceInfoFunc gathers the ServiceInfo embedded in report DTOs. It is
// invoked on the report-requesting goroutine.
type ServiceInfoFunc func(ctx context.Context) ServiceInfo

// Registry is the keyed collection of CheckRunners: it owns registration,
// lifecycle, report assembly, probe views, and the observer fan-out worker.
type Registry struct {
	clock       Clock
	logger      RunnerLogger
	serviceInfo ServiceInfoFunc
	version     string

	mu      sync.RWMutex
	runners map[string]*CheckRunner
	order   []string

	stateMu  sync.Mutex
	state    registryState
	shutdown bool
	ctx      context.Context
	cancel   context.CancelFunc

	startupMu      sync.Mutex
	finishedStartup map[string]struct{}

	observerMu     sync.Mutex
	observers      map[int]Observer
	nextObserverID int
	publishCh      chan publishEvent
	observerDone   chan struct{}
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*Registry)

// WithClock overrides the registry's (and new runners') clock; default is
// SystemClock.
func WithClock(clock Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// WithLogger sets the RunnerLogger invoked for not-ok results.
func WithLogger(logger RunnerLogger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithServiceInfo sets the ServiceInfoFunc used to populate report DTOs.
func WithServiceInfo(fn ServiceInfoFunc) RegistryOption {
	return func(r *Registry) { r.serviceInfo = fn }
}

// WithVersion sets the version string embedded in reports; the default is
// the DTO schema version ReportDTOVersion.
func WithVersion(version string) RegistryOption {
	return func(r *Registry) { r.version = version }
}

// NewRegistry constructs a Registry in the Initialising state. The observer
// fan-out worker starts immediately so SubscribeToStatusChanges may be
// called before StartHealthChecks.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		clock:           SystemClock{},
		runners:         make(map[string]*CheckRunner),
		finishedStartup: make(map[string]struct{}),
		observers:       make(map[int]Observer),
		publishCh:       make(chan publishEvent, 256),
		observerDone:    make(chan struct{}),
		version:         ReportDTOVersion,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.serviceInfo == nil {
		r.serviceInfo = func(context.Context) ServiceInfo { return ServiceInfo{} }
	}
	go r.runObserverLoop()
	return r
}

// RegisterCheck builds a specification via buildFn, commits it, and
// registers the resulting check under metadata.Name. If the registry is
// already Running, the new runner is started immediately. Returns
// ErrDuplicate if the name is already registered.
func (r *Registry) RegisterCheck(metadata CheckMetadata, buildFn func(*CheckSpecification)) error {
	r.mu.Lock()
	if _, exists := r.runners[metadata.Name]; exists {
		r.mu.Unlock()
		return ErrDuplicate(metadata.Name)
	}

	instance := NewCheckInstance(metadata, r.clock)
	spec := instance.Specification()
	buildFn(spec)
	if err := spec.Commit(); err != nil {
		r.mu.Unlock()
		return err
	}

	runner := NewCheckRunner(metadata.Name, instance, r.clock, r.logger, r.publish)
	r.runners[metadata.Name] = runner
	r.order = append(r.order, metadata.Name)
	r.mu.Unlock()

	r.stateMu.Lock()
	running := r.state == stateRunning
	ctx := r.ctx
	r.stateMu.Unlock()
	if running {
		runner.Start(ctx)
	}
	return nil
}

// RegisterCheckFunc is a convenience wrapper for the common case of a
// single-step check: it declares one Check step wrapping fn.
func (r *Registry) RegisterCheckFunc(metadata CheckMetadata, teams []ResponsibleRef, axes []Axis, fn func(*CheckContext) *CheckResultBuilder) error {
	return r.RegisterCheck(metadata, func(spec *CheckSpecification) {
		spec.Check(teams, axes, fn)
	})
}

// RunTransientCheck builds, commits, and executes a specification once
// without registering it, returning the resulting CheckResult. This is the
// supported way to run an ad hoc single check in tests and tooling.
func (r *Registry) RunTransientCheck(ctx context.Context, metadata CheckMetadata, buildFn func(*CheckSpecification)) (*CheckResult, error) {
	instance := NewCheckInstance(metadata, r.clock)
	spec := instance.Specification()
	buildFn(spec)
	if err := spec.Commit(); err != nil {
		return nil, err
	}
	return instance.Execute(ctx), nil
}

// StartHealthChecks transitions the registry to Running and starts every
// registered runner. Returns ErrAlreadyShutdown if Shutdown was previously
// called.
func (r *Registry) StartHealthChecks(ctx context.Context) error {
	r.stateMu.Lock()
	if r.shutdown {
		r.stateMu.Unlock()
		return ErrAlreadyShutdown()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.ctx = runCtx
	r.cancel = cancel
	r.state = stateRunning
	r.stateMu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		r.runners[name].Start(runCtx)
	}
	return nil
}

// StopHealthChecks halts every runner's worker goroutine but leaves
// registrations intact; StartHealthChecks may be called again afterward
// unless Shutdown has been called.
func (r *Registry) StopHealthChecks() {
	r.mu.RLock()
	runners := make([]*CheckRunner, 0, len(r.runners))
	for _, name := range r.order {
		runners = append(runners, r.runners[name])
	}
	r.mu.RUnlock()

	for _, runner := range runners {
		runner.Stop()
	}

	r.stateMu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.state = stateStopped
	r.stateMu.Unlock()
}

// Shutdown stops every runner, permanently disables restart, and tears down
// the observer worker, granting in-flight observer calls up to 800ms to
// finish.
func (r *Registry) Shutdown() {
	r.StopHealthChecks()

	r.stateMu.Lock()
	alreadyShutdown := r.shutdown
	r.shutdown = true
	r.stateMu.Unlock()
	if alreadyShutdown {
		return
	}

	close(r.publishCh)
	select {
	case <-r.observerDone:
	case <-time.After(800 * time.Millisecond):
	}
}

// SubscribeToStatusChanges registers observer and returns a function that
// removes it.
func (r *Registry) SubscribeToStatusChanges(observer Observer) (unsubscribe func()) {
	r.observerMu.Lock()
	id := r.nextObserverID
	r.nextObserverID++
	r.observers[id] = observer
	r.observerMu.Unlock()

	return func() {
		r.observerMu.Lock()
		delete(r.observers, id)
		r.observerMu.Unlock()
	}
}

// publish is the PublishFunc every runner is constructed with; it hands the
// event to the observer queue without blocking the runner beyond the
// channel's buffer capacity.
func (r *Registry) publish(name string, result *CheckResult) {
	defer func() { recover() }() // publishCh may be closed during Shutdown
	select {
	case r.publishCh <- publishEvent{name: name, result: result}:
	default:
		// Queue full: drop rather than block the runner. A production
		// deployment sizes the buffer to its observer count and check
		// cardinality.
	}
}

func (r *Registry) runObserverLoop() {
	defer close(r.observerDone)
	for event := range r.publishCh {
		r.observerMu.Lock()
		observers := make([]Observer, 0, len(r.observers))
		for _, obs := range r.observers {
			observers = append(observers, obs)
		}
		r.observerMu.Unlock()

		for _, obs := range observers {
			r.invokeObserver(obs, event)
		}
	}
}

func (r *Registry) invokeObserver(obs Observer, event publishEvent) {
	defer func() {
		recover() // a panicking observer must not affect others or the queue
	}()
	obs(event.name, event.result)
}

// TriggerUpdateForHealthCheck requests an immediate re-run of the named
// check. Returns ErrNoSuchCheck if name is not registered.
func (r *Registry) TriggerUpdateForHealthCheck(name string) error {
	r.mu.RLock()
	runner, ok := r.runners[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSuchCheck(name)
	}
	runner.RequestUpdate()
	return nil
}

// GetRegisteredHealthChecks returns a snapshot of registered check names in
// registration order.
func (r *Registry) GetRegisteredHealthChecks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// CreateReport assembles a ReportDTO from the runners selected by req.
// Returns ErrNotRunning while the registry is Initialising.
func (r *Registry) CreateReport(ctx context.Context, req CreateReportRequest) (*ReportDTO, error) {
	r.stateMu.Lock()
	state := r.state
	r.stateMu.Unlock()
	if state == stateInitialising {
		return nil, ErrNotRunning()
	}

	r.mu.RLock()
	type selected struct {
		name     string
		runner   *CheckRunner
		declared AxisSet
	}
	var chosen []selected
	for _, name := range r.order {
		runner := r.runners[name]
		declared := runner.DeclaredAxes()
		if req.includes(name, declared) {
			chosen = append(chosen, selected{name: name, runner: runner, declared: declared})
		}
	}
	r.mu.RUnlock()

	now := r.clock.Now()
	dtos := make([]HealthCheckDTO, 0, len(chosen))
	for _, c := range chosen {
		result := c.runner.GetStatus(ctx, req.ForceFreshData)
		dtos = append(dtos, toDTO(c.runner.Metadata(), c.declared, result, now))
	}

	axes := buildAxesDTO(dtos)
	activated := make(AxisSet, len(axes.Activated))
	for _, a := range axes.Activated {
		activated[a] = struct{}{}
	}

	return &ReportDTO{
		Version:       r.version,
		Service:       r.serviceInfo(ctx),
		HealthChecks:  dtos,
		Axes:          axes,
		Ready:         !activated.Has(NotReady),
		Live:          !activated.Has(RequiresReboot),
		CriticalFault: activated.Has(CriticalWakePeopleUp),
		Synchronous:   req.ForceFreshData,
	}, nil
}

// GetReadinessStatus reports the subset of checks declaring NOT_READY.
func (r *Registry) GetReadinessStatus(ctx context.Context) (*ReportDTO, error) {
	return r.CreateReport(ctx, CreateReportRequest{Axes: NewAxisSet(NotReady)})
}

// GetLivenessStatus reports the subset of checks declaring REQUIRES_REBOOT.
func (r *Registry) GetLivenessStatus(ctx context.Context) (*ReportDTO, error) {
	return r.CreateReport(ctx, CreateReportRequest{Axes: NewAxisSet(RequiresReboot)})
}

// GetCriticalStatus reports the subset of checks declaring
// CRITICAL_WAKE_PEOPLE_UP.
func (r *Registry) GetCriticalStatus(ctx context.Context) (*ReportDTO, error) {
	return r.CreateReport(ctx, CreateReportRequest{Axes: NewAxisSet(CriticalWakePeopleUp)})
}

// GetStartupStatus reports the subset of checks declaring NOT_READY,
// forcing fresh execution, and excluding checks that have already reported
// ready once during this process's lifetime: once a check clears startup it
// never re-enters the startup view, even if it later goes NOT_READY again.
func (r *Registry) GetStartupStatus(ctx context.Context) (*ReportDTO, error) {
	r.startupMu.Lock()
	exclude := make(map[string]struct{}, len(r.finishedStartup))
	for name := range r.finishedStartup {
		exclude[name] = struct{}{}
	}
	r.startupMu.Unlock()

	report, err := r.CreateReport(ctx, CreateReportRequest{
		Axes:           NewAxisSet(NotReady),
		ExcludeChecks:  exclude,
		ForceFreshData: true,
	})
	if err != nil {
		return nil, err
	}

	r.startupMu.Lock()
	for _, dto := range report.HealthChecks {
		if !dto.Axes[NotReady] {
			r.finishedStartup[dto.Name] = struct{}{}
		}
	}
	r.startupMu.Unlock()

	return report, nil
}
