package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionManager keeps one form per browser session in memory
type SessionManager struct {
	mu         sync.RWMutex
	forms      map[string]*FormController
	downloader Downloader
	alertTTL   time.Duration
	ttl        time.Duration
	onCreate   func(id string, f *FormController)
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewSessionManager creates a manager whose sessions expire after ttl of inactivity
func NewSessionManager(d Downloader, alertTTL, ttl time.Duration) *SessionManager {
	sm := &SessionManager{
		forms:      make(map[string]*FormController),
		downloader: d,
		alertTTL:   alertTTL,
		ttl:        ttl,
		stop:       make(chan struct{}),
	}

	go sm.cleanupLoop()

	return sm
}

// OnCreate registers a hook run for every new session, before it is handed out
func (sm *SessionManager) OnCreate(fn func(id string, f *FormController)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onCreate = fn
}

// Get returns the form for id, or nil
func (sm *SessionManager) Get(id string) *FormController {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.forms[id]
}

// GetOrCreate returns the form for id. Ids the manager did not issue,
// well-formed or not, get a fresh session and the returned id differs
// from the input.
func (sm *SessionManager) GetOrCreate(id string) (string, *FormController) {
	if f := sm.Get(id); f != nil {
		return id, f
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	id = uuid.NewString()
	f := NewFormController(sm.downloader, sm.alertTTL)
	if sm.onCreate != nil {
		sm.onCreate(id, f)
	}
	sm.forms[id] = f

	return id, f
}

// Remove deletes a session and stops its timers
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	f, ok := sm.forms[id]
	delete(sm.forms, id)
	sm.mu.Unlock()

	if ok {
		f.Close()
	}
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.forms)
}

// Close stops the cleanup loop and every session timer
func (sm *SessionManager) Close() {
	sm.stopOnce.Do(func() {
		close(sm.stop)
	})

	sm.mu.Lock()
	forms := sm.forms
	sm.forms = make(map[string]*FormController)
	sm.mu.Unlock()

	for _, f := range forms {
		f.Close()
	}
}

// cleanupLoop periodically removes idle sessions
func (sm *SessionManager) cleanupLoop() {
	interval := sm.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanup(time.Now())
		case <-sm.stop:
			return
		}
	}
}

// cleanup removes sessions untouched since now-ttl. In-flight submissions are kept.
func (sm *SessionManager) cleanup(now time.Time) int {
	sm.mu.Lock()
	expired := make([]*FormController, 0)
	for id, f := range sm.forms {
		if f.Busy() {
			continue
		}
		if now.Sub(f.LastSeen()) > sm.ttl {
			expired = append(expired, f)
			delete(sm.forms, id)
		}
	}
	sm.mu.Unlock()

	for _, f := range expired {
		f.Close()
	}
	return len(expired)
}
