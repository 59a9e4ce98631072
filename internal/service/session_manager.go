package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSessionIdleTTL = 30 * time.Minute

// SessionConfig holds reader session settings.
type SessionConfig struct {
	ChapterPoints     int
	EndingBonusPoints int
	IdleTTL           time.Duration
}

type sessionKey struct {
	userID  uuid.UUID
	storyID uuid.UUID
}

// SessionManager owns the reader sessions of this process, one per user and story.
type SessionManager struct {
	storyRepo    interfaces.StoryRepository
	progressRepo interfaces.ReaderProgressRepository
	deps         *sessionDeps
	idleTTL      time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*ReaderSession
}

// NewSessionManager wires the session collaborators. publisher may be nil when
// pre-generation is disabled.
func NewSessionManager(
	storyRepo interfaces.StoryRepository,
	nodeRepo interfaces.StoryNodeRepository,
	choiceRepo interfaces.StoryChoiceRepository,
	progressRepo interfaces.ReaderProgressRepository,
	orchestrator *GenerationOrchestrator,
	poller *ResolutionPoller,
	filler *AssetFiller,
	publisher interfaces.PregenerationPublisher,
	cfg SessionConfig,
	logger *zap.Logger,
) *SessionManager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultSessionIdleTTL
	}
	return &SessionManager{
		storyRepo:    storyRepo,
		progressRepo: progressRepo,
		deps: &sessionDeps{
			nodeRepo:     nodeRepo,
			choiceRepo:   choiceRepo,
			progressRepo: progressRepo,
			orchestrator: orchestrator,
			poller:       poller,
			filler:       filler,
			publisher:    publisher,
			cfg:          cfg,
		},
		idleTTL:  cfg.IdleTTL,
		logger:   logger.Named("SessionManager"),
		sessions: make(map[sessionKey]*ReaderSession),
	}
}

// Open returns the caller's session for the story, creating it when needed. A
// new session resumes the saved path, or starts over when the path cannot be
// replayed.
func (m *SessionManager) Open(ctx context.Context, storyID uuid.UUID) (*ReaderSession, error) {
	userID, ok := models.GetUserIDFromContext(ctx)
	if !ok {
		return nil, models.ErrNotAuthenticated
	}
	key := sessionKey{userID: userID, storyID: storyID}
	log := m.logger.With(zap.Stringer("userID", userID), zap.Stringer("storyID", storyID))

	if existing := m.lookup(key); existing != nil {
		existing.touch()
		return existing, nil
	}

	story, err := m.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	sess := newReaderSession(userID, story, m.deps, m.logger.Named("ReaderSession"))

	resumed := false
	progress, err := m.progressRepo.Get(ctx, userID, storyID)
	switch {
	case err == nil && len(progress.PathTaken) > 0:
		if err := sess.resume(ctx, progress.PathTaken); err != nil {
			log.Warn("Could not resume saved path, starting over", zap.Strings("path", progress.PathTaken), zap.Error(err))
		} else {
			resumed = true
		}
	case err != nil && !errors.Is(err, models.ErrNotFound):
		log.Warn("Failed to read reader progress", zap.Error(err))
	}
	if !resumed {
		if _, err := sess.LoadNode(ctx, models.StartNodeKey); err != nil {
			sess.close()
			return nil, err
		}
	}

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		sess.close()
		existing.touch()
		return existing, nil
	}
	m.sessions[key] = sess
	m.mu.Unlock()
	activeSessions.Inc()

	log.Info("Reader session opened", zap.Bool("resumed", resumed))
	return sess, nil
}

// Get returns an open session.
func (m *SessionManager) Get(userID, storyID uuid.UUID) (*ReaderSession, error) {
	sess := m.lookup(sessionKey{userID: userID, storyID: storyID})
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

// Close drops a session and ends its event streams.
func (m *SessionManager) Close(userID, storyID uuid.UUID) bool {
	key := sessionKey{userID: userID, storyID: storyID}
	m.mu.Lock()
	sess, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.close()
	activeSessions.Dec()
	m.logger.Info("Reader session closed", zap.Stringer("userID", userID), zap.Stringer("storyID", storyID))
	return true
}

// EvictIdle closes sessions idle since before now minus the idle TTL.
func (m *SessionManager) EvictIdle(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)
	var idle []*ReaderSession

	m.mu.Lock()
	for key, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, sess)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		sess.close()
		activeSessions.Dec()
	}
	if len(idle) > 0 {
		m.logger.Info("Evicted idle reader sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// RunJanitor evicts idle sessions until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context) {
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.EvictIdle(now)
		}
	}
}

// Shutdown closes every session and waits for background asset jobs.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[sessionKey]*ReaderSession)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
		activeSessions.Dec()
	}
	if m.deps.filler != nil {
		m.deps.filler.Wait()
	}
	m.logger.Info("Session manager stopped", zap.Int("closed", len(sessions)))
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) lookup(key sessionKey) *ReaderSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}
