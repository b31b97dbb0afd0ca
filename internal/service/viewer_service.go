package service

import (
	"context"
	"strings"
	"sync"

	"pdf-page-viewer/internal/domain"
	"pdf-page-viewer/internal/viewer"

	"github.com/google/uuid"
)

// subscriberBuffer is the number of events a slow subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 64

// ViewerService keeps the live viewer sessions.
type ViewerService struct {
	loader   domain.DocumentLoader
	settings domain.ViewerSettings
	logger   domain.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	id     string
	viewer *viewer.Viewer
	logger domain.Logger

	mu      sync.Mutex
	subs    map[int]chan domain.Event
	nextSub int
	closed  bool
}

func NewViewerService(loader domain.DocumentLoader, settings domain.ViewerSettings, logger domain.Logger) *ViewerService {
	return &ViewerService{
		loader:   loader,
		settings: settings,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Create starts a viewer and, when locator is set, begins loading it.
// A non-positive viewportHeight uses the configured default.
func (s *ViewerService) Create(locator string, viewportHeight float64) (string, domain.ViewerState, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "", domain.ViewerState{}, domain.ErrViewerClosed
	}

	settings := s.settings
	if viewportHeight > 0 {
		settings.ViewportHeight = viewportHeight
	}

	sess := &session{
		id:     uuid.New().String(),
		logger: s.logger,
		subs:   make(map[int]chan domain.Event),
	}
	sess.viewer = viewer.New(s.loader, viewer.Options{
		Settings: settings,
		Logger:   s.logger,
		OnEvent:  sess.publish,
	})

	// Registered only once fully set up.
	if locator = strings.TrimSpace(locator); locator != "" {
		if err := sess.viewer.SetLocator(locator); err != nil {
			_ = sess.close()
			return "", domain.ViewerState{}, err
		}
	}
	state, err := sess.viewer.State()
	if err != nil {
		_ = sess.close()
		return "", domain.ViewerState{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = sess.close()
		return "", domain.ViewerState{}, domain.ErrViewerClosed
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("Viewer created", "id", sess.id, "locator", locator)
	return sess.id, state, nil
}

// Get returns the viewer of session id.
func (s *ViewerService) Get(id string) (*viewer.Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrViewerNotFound
	}
	return sess.viewer, nil
}

// PageText extracts and structures the text of page in session id.
func (s *ViewerService) PageText(ctx context.Context, id string, page int) (PageText, error) {
	v, err := s.Get(id)
	if err != nil {
		return PageText{}, err
	}
	text, err := v.PageText(ctx, page)
	if err != nil {
		return PageText{}, err
	}
	return BuildPageText(page, text), nil
}

// Subscribe returns a channel of the session's events and a function that
// ends the subscription. The channel is closed when either happens or the
// session is disposed.
func (s *ViewerService) Subscribe(id string) (<-chan domain.Event, func(), error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrViewerNotFound
	}
	return sess.subscribe()
}

// Dispose closes the viewer of session id and ends its subscriptions.
func (s *ViewerService) Dispose(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrViewerNotFound
	}

	err := sess.close()
	s.logger.Info("Viewer disposed", "id", id)
	return err
}

// Len returns the number of live sessions.
func (s *ViewerService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close disposes every session and rejects new ones.
func (s *ViewerService) Close() error {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *session) {
			defer wg.Done()
			if err := sess.close(); err != nil {
				s.logger.Error("Failed to close viewer", err, "id", sess.id)
			}
		}(sess)
	}
	wg.Wait()
	s.logger.Info("All viewers closed", "count", len(sessions))
	return nil
}

// publish fans an event out without blocking the viewer.
func (ss *session) publish(e domain.Event) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for key, ch := range ss.subs {
		select {
		case ch <- e:
		default:
			ss.logger.Warn("Dropping event for slow subscriber", "id", ss.id, "subscriber", key, "type", e.Type)
		}
	}
}

func (ss *session) subscribe() (<-chan domain.Event, func(), error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil, nil, domain.ErrViewerClosed
	}
	key := ss.nextSub
	ss.nextSub++
	ch := make(chan domain.Event, subscriberBuffer)
	ss.subs[key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			ss.mu.Lock()
			defer ss.mu.Unlock()
			if c, ok := ss.subs[key]; ok {
				delete(ss.subs, key)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// close stops the viewer first so no event races with closing the channels.
func (ss *session) close() error {
	err := ss.viewer.Close()

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.closed = true
	for key, ch := range ss.subs {
		delete(ss.subs, key)
		close(ch)
	}
	return err
}
