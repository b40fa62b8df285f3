// Package testutil provides in-memory fakes for the application-layer tests:
// repositories backed by maps, scripted music-provider stubs, and a discarding
// logger. The repository fakes honor the same conditional-write contracts as
// the real implementations, Conflict and NotFound included.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/resona-io/resona/internal/application/music"
	"github.com/resona-io/resona/internal/domain/motion"
	"github.com/resona-io/resona/internal/domain/sensor"
	"github.com/resona-io/resona/internal/domain/session"
	"github.com/resona-io/resona/internal/domain/user"
	"github.com/resona-io/resona/internal/shared/errors"
	"github.com/resona-io/resona/internal/shared/logger"
)

// NewLogger returns a logger that discards everything.
func NewLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// =====================================================================
// Sensor repository
// =====================================================================

type SensorRepo struct {
	mu      sync.Mutex
	sensors map[string]*sensor.Sensor
}

func NewSensorRepo(sensors ...*sensor.Sensor) *SensorRepo {
	r := &SensorRepo{sensors: make(map[string]*sensor.Sensor)}
	for _, s := range sensors {
		r.sensors[s.SensorID] = s
	}
	return r
}

func (r *SensorRepo) Create(ctx context.Context, s *sensor.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sensors[s.SensorID]; ok {
		return errors.NewConflictError("sensor already exists", s.SensorID)
	}
	r.sensors[s.SensorID] = s
	return nil
}

func (r *SensorRepo) GetByID(ctx context.Context, sensorID string) (*sensor.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sensors[sensorID]
	if !ok {
		return nil, errors.NewNotFoundError("sensor not found", sensorID)
	}
	return s, nil
}

func (r *SensorRepo) ListByUserID(ctx context.Context, userID string) ([]*sensor.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sensor.Sensor
	for _, s := range r.sensors {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (r *SensorRepo) Update(ctx context.Context, s *sensor.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sensors[s.SensorID]; !ok {
		return errors.NewNotFoundError("sensor not found", s.SensorID)
	}
	r.sensors[s.SensorID] = s
	return nil
}

func (r *SensorRepo) Delete(ctx context.Context, sensorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sensors[sensorID]; !ok {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	delete(r.sensors, sensorID)
	return nil
}

func (r *SensorRepo) AdvanceLastMotion(ctx context.Context, sensorID string, occurredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sensors[sensorID]
	if !ok {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	if s.LastMotionAt == nil || occurredAt.After(*s.LastMotionAt) {
		s.LastMotionAt = &occurredAt
	}
	return nil
}

func (r *SensorRepo) UpdateStatus(ctx context.Context, sensorID string, status sensor.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sensors[sensorID]
	if !ok {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	s.Status = status
	return nil
}

func (r *SensorRepo) UpdateBatteryLevel(ctx context.Context, sensorID string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sensors[sensorID]
	if !ok {
		return errors.NewNotFoundError("sensor not found", sensorID)
	}
	s.BatteryLevel = &level
	return nil
}

// =====================================================================
// User repository
// =====================================================================

type UserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User

	SetMusicConnectedCalls []string
}

func NewUserRepo(users ...*user.User) *UserRepo {
	r := &UserRepo{users: make(map[string]*user.User)}
	for _, u := range users {
		r.users[u.UserID] = u
	}
	return r
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return errors.NewConflictError("user already exists", u.UserID)
	}
	r.users[u.UserID] = u
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, errors.NewNotFoundError("user not found", userID)
	}
	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; !ok {
		return errors.NewNotFoundError("user not found", u.UserID)
	}
	r.users[u.UserID] = u
	return nil
}

func (r *UserRepo) ListMusicConnected(ctx context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*user.User
	for _, u := range r.users {
		if u.MusicConnected {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *UserRepo) SetMusicConnected(ctx context.Context, userID string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return errors.NewNotFoundError("user not found", userID)
	}
	u.MusicConnected = connected
	r.SetMusicConnectedCalls = append(r.SetMusicConnectedCalls, userID)
	return nil
}

// =====================================================================
// Session repository
// =====================================================================

type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*session.Session

	// Error overrides for race and failure scenarios.
	CreateActiveErr error
	RecordMotionErr error
	CloseErr        error
}

func NewSessionRepo(sessions ...*session.Session) *SessionRepo {
	r := &SessionRepo{sessions: make(map[string]*session.Session)}
	for _, s := range sessions {
		r.sessions[s.SessionID] = s
	}
	return r
}

func (r *SessionRepo) CreateActive(ctx context.Context, s *session.Session) error {
	if r.CreateActiveErr != nil {
		return r.CreateActiveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.SensorID == s.SensorID && existing.Status == session.StatusActive {
			return errors.NewConflictError("sensor already has an active session", s.SensorID)
		}
	}
	r.sessions[s.SessionID] = s
	return nil
}

func (r *SessionRepo) GetActiveBySensorID(ctx context.Context, sensorID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.SensorID == sensorID && s.Status == session.StatusActive {
			return s, nil
		}
	}
	return nil, errors.NewNotFoundError("no active session", sensorID)
}

func (r *SessionRepo) GetByID(ctx context.Context, sessionID string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.NewNotFoundError("session not found", sessionID)
	}
	return s, nil
}

func (r *SessionRepo) RecordMotion(ctx context.Context, sessionID string, occurredAt time.Time) error {
	if r.RecordMotionErr != nil {
		return r.RecordMotionErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != session.StatusActive {
		return errors.NewConflictError("session is not active", sessionID)
	}
	return s.RecordMotion(occurredAt)
}

func (r *SessionRepo) MarkPlaybackStarted(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.NewNotFoundError("session not found", sessionID)
	}
	s.PlaybackStarted = true
	return nil
}

func (r *SessionRepo) Close(ctx context.Context, sessionID string, endAt time.Time, durationSeconds int64) error {
	if r.CloseErr != nil {
		return r.CloseErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != session.StatusActive {
		return errors.NewConflictError("session is not active", sessionID)
	}
	s.Status = session.StatusCompleted
	s.EndAt = &endAt
	s.DurationSeconds = durationSeconds
	return nil
}

func (r *SessionRepo) ListActive(ctx context.Context) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if s.Status == session.StatusActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (r *SessionRepo) ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.sessions {
		if s.SensorID != sensorID {
			continue
		}
		if !from.IsZero() && s.StartAt.Before(from) {
			continue
		}
		if !to.IsZero() && s.StartAt.After(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.After(out[j].StartAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, s := range r.sessions {
		if s.Status == session.StatusActive {
			continue
		}
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// =====================================================================
// Motion event repository
// =====================================================================

type EventRepo struct {
	mu     sync.Mutex
	events []*motion.Event

	AppendErr error
}

func NewEventRepo() *EventRepo {
	return &EventRepo{}
}

func (r *EventRepo) Append(ctx context.Context, e *motion.Event) error {
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *EventRepo) ListBySensor(ctx context.Context, sensorID string, from, to time.Time, limit int) ([]*motion.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*motion.Event
	for _, e := range r.events {
		if e.SensorID == sensorID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EventRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*motion.Event
	var deleted int64
	for _, e := range r.events {
		if e.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a snapshot of the appended rows.
func (r *EventRepo) Events() []*motion.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*motion.Event, len(r.events))
	copy(out, r.events)
	return out
}

// =====================================================================
// Music provider stubs
// =====================================================================

// PlayerStub scripts the playback provider. Zero value: no active device,
// every command succeeds.
type PlayerStub struct {
	mu sync.Mutex

	State    *music.PlaybackState
	StateErr error
	StartErr error
	PauseErr error
	Devices  []music.Device

	StateCalls int
	StartCalls int
	PauseCalls int
}

func (p *PlayerStub) GetPlaybackState(ctx context.Context, accessToken string) (*music.PlaybackState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StateCalls++
	return p.State, p.StateErr
}

func (p *PlayerStub) StartPlayback(ctx context.Context, accessToken, deviceID, contextURI string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls++
	return p.StartErr
}

func (p *PlayerStub) PausePlayback(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCalls++
	return p.PauseErr
}

func (p *PlayerStub) ListDevices(ctx context.Context, accessToken string) ([]music.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Devices, nil
}

// Calls returns the recorded call counts.
func (p *PlayerStub) Calls() (state, start, pause int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StateCalls, p.StartCalls, p.PauseCalls
}

// RefresherStub scripts the token refresher.
type RefresherStub struct {
	mu sync.Mutex

	Result *music.RefreshedToken
	Err    error

	RefreshCalls int
}

func (r *RefresherStub) Refresh(ctx context.Context, refreshToken string) (*music.RefreshedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RefreshCalls++
	return r.Result, r.Err
}

func (r *RefresherStub) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.RefreshCalls
}

// =====================================================================
// Secret store
// =====================================================================

// MemoryStore is an unencrypted in-memory secret store.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, ref string, plaintext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[ref] = append([]byte(nil), plaintext...)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plaintext, ok := s.secrets[ref]
	if !ok {
		return nil, errors.NewNotFoundError("secret not found", ref)
	}
	return append([]byte(nil), plaintext...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, ref)
	return nil
}

// =====================================================================
// Refresh lease
// =====================================================================

// LeaseStub grants every acquire unless Busy is set.
type LeaseStub struct {
	mu sync.Mutex

	Busy bool

	Acquired []string
	Released []string
}

func (l *LeaseStub) Acquire(ctx context.Context, userID string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Busy {
		return "", false, nil
	}
	l.Acquired = append(l.Acquired, userID)
	return "holder-" + userID, true, nil
}

func (l *LeaseStub) Release(ctx context.Context, userID, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Released = append(l.Released, userID)
	return nil
}
