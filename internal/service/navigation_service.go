package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/dto"
	"github.com/noah-isme/educlass-api/internal/models"
	"github.com/noah-isme/educlass-api/internal/navigator"
	"github.com/noah-isme/educlass-api/internal/observability"
	"github.com/noah-isme/educlass-api/internal/storage"
)

const subscriberBufferSize = 8

var (
	// ErrOperationPending indicates the initiating control is disabled while its operation runs.
	ErrOperationPending = errors.New("operation already in progress")
	// ErrNotAuthenticated indicates the device holds no identity.
	ErrNotAuthenticated = errors.New("device is not authenticated")
	// ErrUnknownEvent indicates an event type the shell does not dispatch directly.
	ErrUnknownEvent = errors.New("unknown navigation event")
	// ErrDeviceReset indicates the device was reset while an operation was pending.
	ErrDeviceReset = errors.New("device was reset")
)

// NavigationService owns one navigation shell per device.
type NavigationService interface {
	State(ctx context.Context, deviceID string) dto.NavigatorStateResponse
	Login(ctx context.Context, deviceID string, role models.Role) (dto.LoginResponse, error)
	Dispatch(ctx context.Context, deviceID string, req dto.NavigationEventRequest) (dto.NavigationResult, error)
	SubmitBatch(ctx context.Context, deviceID string, form dto.BatchCreateRequest) (dto.BatchSubmitResponse, error)
	Identity(deviceID string) (models.Identity, error)
	Subscribe(ctx context.Context, deviceID string) (<-chan dto.NavigatorStateResponse, func())
	Reset(ctx context.Context, deviceID string) error
}

// NavigationDeps groups the collaborators of the navigation shells.
type NavigationDeps struct {
	Storage    storage.KeyValue
	PersistKey string
	Registry   navigator.BatchRegistry
	Auth       AuthService
	Batches    BatchService
	Dashboards DashboardService
	Live       LiveSessionService
	Publisher  TransitionPublisher
}

type deviceShell struct {
	id    string
	nav   *navigator.Navigator
	store IdentityStore

	// commit is held shared while an operation applies its result and
	// exclusively by Reset while it closes the shell.
	commit sync.RWMutex

	mu          sync.Mutex
	closed      bool
	pending     dto.PendingOperations
	subscribers map[int]chan dto.NavigatorStateResponse
	nextSub     int
}

type navigationService struct {
	deps   NavigationDeps
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	shells map[string]*deviceShell
}

// NewNavigationService wires the shells to their collaborators.
func NewNavigationService(deps NavigationDeps, logger zerolog.Logger) NavigationService {
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	if deps.Publisher == nil {
		deps.Publisher = NewLogTransitionPublisher(logger)
	}
	return &navigationService{
		deps:   deps,
		logger: logger.With().Str("component", "navigation_service").Logger(),
		now:    time.Now,
		shells: make(map[string]*deviceShell),
	}
}

func (s *navigationService) State(ctx context.Context, deviceID string) dto.NavigatorStateResponse {
	sh := s.shell(ctx, deviceID)
	return s.snapshot(sh, sh.nav.State())
}

// Login runs the authentication collaborator and dispatches login with the
// resolved identity. The collaborator is not cancelled when the caller goes away.
func (s *navigationService) Login(ctx context.Context, deviceID string, role models.Role) (dto.LoginResponse, error) {
	if !role.Valid() {
		return dto.LoginResponse{}, models.ErrInvalidRole
	}

	sh := s.shell(ctx, deviceID)
	current := sh.nav.State()
	if current.View != navigator.ViewAuth {
		return dto.LoginResponse{NavigationResult: s.result(sh, navigator.Result{State: current})}, nil
	}

	if !s.begin(sh, "login") {
		return dto.LoginResponse{}, ErrOperationPending
	}
	defer s.end(sh, "login")

	detached := context.WithoutCancel(ctx)
	auth, err := s.deps.Auth.Authenticate(detached, role)
	if err != nil {
		return dto.LoginResponse{}, fmt.Errorf("authenticate: %w", err)
	}

	sh.commit.RLock()
	defer sh.commit.RUnlock()
	if sh.isClosed() {
		return dto.LoginResponse{}, ErrDeviceReset
	}

	res, err := sh.nav.Dispatch(detached, navigator.Login(role, auth.Identity))
	if err != nil {
		return dto.LoginResponse{}, err
	}

	response := dto.LoginResponse{}
	if res.Applied {
		sh.store.Login(detached, auth.Identity, auth.Token)
		response.Token = auth.Token
		s.broadcast(sh, s.snapshot(sh, res.State))
	}
	response.NavigationResult = s.result(sh, res)

	return response, nil
}

// Dispatch forwards events that need no collaborator.
func (s *navigationService) Dispatch(ctx context.Context, deviceID string, req dto.NavigationEventRequest) (dto.NavigationResult, error) {
	event, err := eventFromRequest(req)
	if err != nil {
		return dto.NavigationResult{}, err
	}

	sh := s.shell(ctx, deviceID)
	res, err := sh.nav.Dispatch(context.WithoutCancel(ctx), event)
	if err != nil {
		return dto.NavigationResult{}, err
	}
	return s.result(sh, res), nil
}

// SubmitBatch runs the batch creation collaborator and dispatches batchCreated.
func (s *navigationService) SubmitBatch(ctx context.Context, deviceID string, form dto.BatchCreateRequest) (dto.BatchSubmitResponse, error) {
	sh := s.shell(ctx, deviceID)
	current := sh.nav.State()
	if current.View != navigator.ViewBatchCreation || current.Role() != models.RoleTeacher {
		return dto.BatchSubmitResponse{NavigationResult: s.result(sh, navigator.Result{State: current})}, nil
	}

	if err := s.deps.Batches.Validate(form); err != nil {
		return dto.BatchSubmitResponse{}, err
	}

	if !s.begin(sh, "batch_submit") {
		return dto.BatchSubmitResponse{}, ErrOperationPending
	}
	defer s.end(sh, "batch_submit")

	detached := context.WithoutCancel(ctx)
	batch, err := s.deps.Batches.Create(detached, form)
	if err != nil {
		return dto.BatchSubmitResponse{}, fmt.Errorf("create batch: %w", err)
	}

	sh.commit.RLock()
	defer sh.commit.RUnlock()
	if sh.isClosed() {
		return dto.BatchSubmitResponse{}, ErrDeviceReset
	}

	res, err := sh.nav.Dispatch(detached, navigator.BatchCreated(batch))
	if err != nil {
		return dto.BatchSubmitResponse{}, err
	}

	response := dto.BatchSubmitResponse{NavigationResult: s.result(sh, res)}
	if !res.Applied {
		return response, nil
	}

	batch.OwnerID = current.Identity.ID
	if s.deps.Dashboards != nil {
		s.deps.Dashboards.Invalidate(detached, batch.OwnerID)
	}

	created := dto.NewBatchResponse(batch)
	share := dto.NewBatchShareResponse(batch)
	response.Batch = &created
	response.Share = &share
	response.Toast = &dto.Notice{
		Title:       "Batch Created Successfully!",
		Description: fmt.Sprintf("\"%s\" is ready for students to join.", batch.Name),
	}

	s.logger.Info().Str("device_id", deviceID).Str("batch_id", batch.ID).Msg("batch created")

	return response, nil
}

// Identity returns the identity held by the device's navigator.
func (s *navigationService) Identity(deviceID string) (models.Identity, error) {
	s.mu.Lock()
	sh, ok := s.shells[deviceID]
	s.mu.Unlock()
	if !ok {
		return models.Identity{}, ErrNotAuthenticated
	}

	state := sh.nav.State()
	if state.Identity == nil {
		return models.Identity{}, ErrNotAuthenticated
	}
	return *state.Identity, nil
}

// Subscribe streams a snapshot after every change of the device state. The
// current state is delivered first. Slow subscribers miss intermediate snapshots.
// A shell closed by a concurrent Reset is replaced by a fresh one.
func (s *navigationService) Subscribe(ctx context.Context, deviceID string) (<-chan dto.NavigatorStateResponse, func()) {
	var (
		sh *deviceShell
		ch chan dto.NavigatorStateResponse
		id int
	)
	for {
		sh = s.shell(ctx, deviceID)
		ch = make(chan dto.NavigatorStateResponse, subscriberBufferSize)
		ch <- s.snapshot(sh, sh.nav.State())

		sh.mu.Lock()
		if !sh.closed {
			id = sh.nextSub
			sh.nextSub++
			sh.subscribers[id] = ch
			sh.mu.Unlock()
			break
		}
		sh.mu.Unlock()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sh.mu.Lock()
			if sub, ok := sh.subscribers[id]; ok {
				delete(sh.subscribers, id)
				close(sub)
			}
			sh.mu.Unlock()
		})
	}
	return ch, cancel
}

// Reset discards the device shell and clears its persisted auth slice.
func (s *navigationService) Reset(ctx context.Context, deviceID string) error {
	// The slice is cleared before the lock is released so the next shell for
	// the device rehydrates the logged-out record.
	s.mu.Lock()
	sh, ok := s.shells[deviceID]
	delete(s.shells, deviceID)
	if !ok {
		NewIdentityStore(s.deviceStorage(deviceID), s.deps.PersistKey, s.logger).Logout(ctx)
		s.mu.Unlock()
		return nil
	}
	sh.commit.Lock()
	sh.mu.Lock()
	sh.closed = true
	sh.mu.Unlock()
	sh.store.Logout(ctx)
	sh.commit.Unlock()
	s.mu.Unlock()

	state := sh.nav.State()
	if state.View == navigator.ViewLiveSession && s.deps.Live != nil {
		s.deps.Live.Exit(ctx, state.ActiveID, deviceID)
	}

	sh.mu.Lock()
	for id, sub := range sh.subscribers {
		close(sub)
		delete(sh.subscribers, id)
	}
	sh.mu.Unlock()

	s.logger.Info().Str("device_id", deviceID).Msg("device reset")
	return nil
}

func (s *navigationService) shell(ctx context.Context, deviceID string) *deviceShell {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh, ok := s.shells[deviceID]; ok && !sh.isClosed() {
		return sh
	}

	sh := &deviceShell{
		id:          deviceID,
		store:       NewIdentityStore(s.deviceStorage(deviceID), s.deps.PersistKey, s.logger),
		subscribers: make(map[int]chan dto.NavigatorStateResponse),
	}
	sh.store.Init(ctx)
	sh.nav = navigator.New(s.deps.Registry, s.logger.With().Str("device_id", deviceID).Logger(), &shellObserver{svc: s, shell: sh})
	s.shells[deviceID] = sh

	return sh
}

func (sh *deviceShell) isClosed() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.closed
}

func (s *navigationService) deviceStorage(deviceID string) storage.KeyValue {
	return storage.WithPrefix(s.deps.Storage, deviceID)
}

// begin marks an operation pending. It reports false when it already was.
func (s *navigationService) begin(sh *deviceShell, operation string) bool {
	sh.mu.Lock()
	flag := pendingFlag(&sh.pending, operation)
	if *flag {
		sh.mu.Unlock()
		observability.PendingRejections().WithLabelValues(operation).Inc()
		return false
	}
	*flag = true
	sh.mu.Unlock()

	s.broadcast(sh, s.snapshot(sh, sh.nav.State()))
	return true
}

func (s *navigationService) end(sh *deviceShell, operation string) {
	sh.mu.Lock()
	*pendingFlag(&sh.pending, operation) = false
	sh.mu.Unlock()

	s.broadcast(sh, s.snapshot(sh, sh.nav.State()))
}

func pendingFlag(p *dto.PendingOperations, operation string) *bool {
	if operation == "login" {
		return &p.Login
	}
	return &p.BatchSubmit
}

func (s *navigationService) snapshot(sh *deviceShell, state navigator.State) dto.NavigatorStateResponse {
	sh.mu.Lock()
	pending := sh.pending
	sh.mu.Unlock()

	return dto.NavigatorStateResponse{
		DeviceID: sh.id,
		View:     string(state.View),
		Identity: state.Identity,
		ActiveID: state.ActiveID,
		Pending:  pending,
		Auth:     sh.store.Snapshot(),
	}
}

func (s *navigationService) result(sh *deviceShell, res navigator.Result) dto.NavigationResult {
	return dto.NavigationResult{Applied: res.Applied, State: s.snapshot(sh, res.State)}
}

func (s *navigationService) broadcast(sh *deviceShell, snapshot dto.NavigatorStateResponse) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for _, sub := range sh.subscribers {
		select {
		case sub <- snapshot:
		default:
			s.logger.Debug().Str("device_id", sh.id).Msg("dropping state snapshot for slow subscriber")
		}
	}
}

func eventFromRequest(req dto.NavigationEventRequest) (navigator.Event, error) {
	target := req.BatchID
	if target == "" {
		target = req.SessionID
	}

	switch navigator.EventType(req.Type) {
	case navigator.EventCreateBatch:
		return navigator.CreateBatch(), nil
	case navigator.EventBack:
		return navigator.Back(), nil
	case navigator.EventStartLiveSession:
		return navigator.StartLiveSession(target), nil
	case navigator.EventJoinLiveSession:
		if req.SessionID != "" {
			target = req.SessionID
		}
		return navigator.JoinLiveSession(target), nil
	case navigator.EventLeave:
		return navigator.Leave(), nil
	default:
		return navigator.Event{}, ErrUnknownEvent
	}
}

// shellObserver runs inside the navigator lock, so it only touches
// collaborators that never call back into the navigator.
type shellObserver struct {
	svc   *navigationService
	shell *deviceShell
}

func (o *shellObserver) Transitioned(ctx context.Context, from, to navigator.State, event navigator.Event) {
	observability.NavigatorTransitions().
		WithLabelValues(string(from.View), string(to.View), string(event.Type)).
		Inc()

	if live := o.svc.deps.Live; live != nil {
		if from.View == navigator.ViewLiveSession {
			live.Exit(ctx, from.ActiveID, o.shell.id)
		}
		if to.View == navigator.ViewLiveSession && to.Identity != nil {
			live.Enter(ctx, to.ActiveID, o.shell.id, *to.Identity)
		}
	}

	transition := dto.TransitionEvent{
		ID:         uuid.NewString(),
		DeviceID:   o.shell.id,
		Event:      string(event.Type),
		From:       string(from.View),
		To:         string(to.View),
		ActiveID:   to.ActiveID,
		OccurredAt: o.svc.now().UTC(),
	}
	if to.Identity != nil {
		transition.IdentityID = to.Identity.ID
		transition.Role = string(to.Identity.Role)
	}
	if err := o.svc.deps.Publisher.Publish(ctx, transition); err != nil {
		o.svc.logger.Warn().Err(err).Str("device_id", o.shell.id).Msg("failed to publish navigation transition")
	}

	o.svc.broadcast(o.shell, o.svc.snapshot(o.shell, to))
}

func (o *shellObserver) Ignored(_ context.Context, current navigator.State, event navigator.Event) {
	observability.NavigatorIgnored().WithLabelValues(string(current.View), string(event.Type)).Inc()
}
