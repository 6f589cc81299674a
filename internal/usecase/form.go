package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mmuslimabdulj/goat-grab/internal/backend"
	"github.com/mmuslimabdulj/goat-grab/internal/domain"
	"github.com/mmuslimabdulj/goat-grab/internal/validator"
)

var (
	// ErrInvalidURL is returned when a submission is attempted with a rejected link
	ErrInvalidURL = errors.New("invalid video url")

	// ErrBusy is returned while a submission is in flight
	ErrBusy = errors.New("submission in progress")
)

// Downloader is the backend the form hands links to
type Downloader interface {
	Download(ctx context.Context, videoURL string) (*backend.Reply, error)
	FileURL(filename string) string
}

// Listener receives every event a form emits
type Listener func(domain.Event)

// FormController owns the state of one form session
type FormController struct {
	mu         sync.Mutex
	downloader Downloader
	alertTTL   time.Duration
	listener   Listener

	url        string
	phase      domain.Phase
	result     *domain.Result
	errMsg     string
	alert      *domain.Alert
	alertTimer *time.Timer
	version    uint64
	lastSeen   time.Time
	closed     bool
}

// NewFormController creates an idle form backed by d
func NewFormController(d Downloader, alertTTL time.Duration) *FormController {
	if alertTTL <= 0 {
		alertTTL = domain.AlertTTL
	}
	return &FormController{
		downloader: d,
		alertTTL:   alertTTL,
		phase:      domain.PhaseIdle,
		version:    uint64(time.Now().UnixMicro()),
		lastSeen:   time.Now(),
	}
}

// OnChange sets the listener invoked after every transition
func (f *FormController) OnChange(l Listener) {
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
}

// Snapshot returns the current state
func (f *FormController) Snapshot() domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// CanSubmit reports whether the submit trigger should be enabled
func (f *FormController) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitLocked()
}

// SetURL stores the text typed into the input.
// Editing after a failure returns the form to idle.
func (f *FormController) SetURL(text string) (domain.State, error) {
	f.mu.Lock()
	f.lastSeen = time.Now()
	if f.phase == domain.PhaseSubmitting {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s, ErrBusy
	}

	f.url = truncate(text, domain.MaxURLLength)
	if f.phase == domain.PhaseFailure {
		f.phase = domain.PhaseIdle
		f.errMsg = ""
	}

	s, l := f.commitLocked()
	f.mu.Unlock()

	emit(l, domain.NewStateEvent(s))
	return s, nil
}

// Submit sends the current link to the backend and waits for the answer.
// The backend is called at most once and without holding the lock.
func (f *FormController) Submit(ctx context.Context) (domain.State, error) {
	f.mu.Lock()
	f.lastSeen = time.Now()

	if f.phase == domain.PhaseSubmitting {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s, ErrBusy
	}

	if !validator.IsValidURL(f.url) {
		f.raiseAlertLocked(domain.SeverityError, domain.MsgInvalidURL)
		s, l := f.commitLocked()
		f.mu.Unlock()
		emit(l, domain.NewStateEvent(s))
		return s, ErrInvalidURL
	}

	videoURL := strings.TrimSpace(f.url)
	f.phase = domain.PhaseSubmitting
	f.result = nil
	f.errMsg = ""
	f.clearAlertLocked()
	s, l := f.commitLocked()
	f.mu.Unlock()
	emit(l, domain.NewStateEvent(s))

	settled := false
	defer func() {
		// loading must never outlive the request, even if the backend panics
		if !settled {
			f.finish(nil, nil, errors.New("submission aborted"))
		}
	}()

	reply, err := f.downloader.Download(ctx, videoURL)
	if err == nil && reply == nil {
		err = backend.ErrMalformedReply
	}

	var result *domain.Result
	if err == nil && reply.Status == domain.StatusSuccess {
		if reply.Filename == "" {
			err = backend.ErrEmptyFilename
		} else {
			title := strings.TrimSpace(reply.Title)
			if title == "" {
				title = domain.FallbackTitle
			}
			result = &domain.Result{
				DownloadURL: f.downloader.FileURL(reply.Filename),
				Title:       title,
			}
		}
	}

	settled = true
	return f.finish(reply, result, err), nil
}

// finish moves a submitting form to success or failure
func (f *FormController) finish(reply *backend.Reply, result *domain.Result, err error) domain.State {
	f.mu.Lock()
	f.lastSeen = time.Now()

	switch {
	case result != nil:
		f.phase = domain.PhaseSuccess
		f.result = result
		f.raiseAlertLocked(domain.SeveritySuccess, domain.MsgReady)
	case err != nil:
		f.phase = domain.PhaseFailure
		f.errMsg = err.Error()
		f.raiseAlertLocked(domain.SeverityError, "Something went wrong: "+err.Error())
	default:
		detail := strings.TrimSpace(reply.Detail)
		if detail == "" {
			detail = "download failed"
		}
		f.phase = domain.PhaseFailure
		f.errMsg = detail
		f.raiseAlertLocked(domain.SeverityError, "Error: "+detail)
	}

	s, l := f.commitLocked()
	f.mu.Unlock()

	emit(l, domain.NewStateEvent(s))
	return s
}

// Reset clears the link, result and alert
func (f *FormController) Reset() (domain.State, error) {
	f.mu.Lock()
	f.lastSeen = time.Now()
	if f.phase == domain.PhaseSubmitting {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s, ErrBusy
	}

	f.url = ""
	f.phase = domain.PhaseIdle
	f.result = nil
	f.errMsg = ""
	f.clearAlertLocked()

	s, l := f.commitLocked()
	f.mu.Unlock()

	emit(l, domain.NewStateEvent(s))
	return s, nil
}

// DismissAlert closes the alert with the given id. An empty id closes
// whatever alert is showing. Dismissing a replaced alert is a no-op.
func (f *FormController) DismissAlert(id string) domain.State {
	f.mu.Lock()
	f.lastSeen = time.Now()
	if f.alert == nil || (id != "" && f.alert.ID != id) {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s
	}

	f.clearAlertLocked()
	s, l := f.commitLocked()
	f.mu.Unlock()

	emit(l, domain.NewStateEvent(s))
	return s
}

// LastSeen returns when the session was last used
func (f *FormController) LastSeen() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

// Busy reports whether a submission is in flight
func (f *FormController) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase == domain.PhaseSubmitting
}

// Close stops the pending alert timer and detaches the listener
func (f *FormController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.listener = nil
	if f.alertTimer != nil {
		f.alertTimer.Stop()
		f.alertTimer = nil
	}
}

// raiseAlertLocked replaces the current alert and owns its expiry timer
// NOTE: Caller must hold f.mu
func (f *FormController) raiseAlertLocked(severity domain.Severity, message string) {
	f.clearAlertLocked()
	if f.closed {
		return
	}

	alert := domain.NewAlert(severity, message, f.alertTTL)
	f.alert = alert
	id := alert.ID
	f.alertTimer = time.AfterFunc(f.alertTTL, func() {
		f.expireAlert(id)
	})
}

// clearAlertLocked removes the alert and stops its timer
// NOTE: Caller must hold f.mu
func (f *FormController) clearAlertLocked() {
	if f.alertTimer != nil {
		f.alertTimer.Stop()
		f.alertTimer = nil
	}
	f.alert = nil
}

// expireAlert is the timer callback. A timer that lost the race against a
// replacement finds a different ID and leaves the newer alert alone.
func (f *FormController) expireAlert(id string) {
	f.mu.Lock()
	if f.alert == nil || f.alert.ID != id {
		f.mu.Unlock()
		return
	}
	f.alert = nil
	f.alertTimer = nil
	s, l := f.commitLocked()
	f.mu.Unlock()

	emit(l, domain.NewAlertExpiredEvent(id))
	emit(l, domain.NewStateEvent(s))
}

func (f *FormController) canSubmitLocked() bool {
	return validator.IsValidURL(f.url) && f.phase != domain.PhaseSubmitting
}

// commitLocked records a transition and returns what to publish.
// Listeners run after the lock is released, so two transitions can reach
// them out of order; Version lets consumers drop the older one.
// Versions start from the clock in microseconds, so a replacement session
// never looks older to an open page and the value stays exact in JSON.
// NOTE: Caller must hold f.mu
func (f *FormController) commitLocked() (domain.State, Listener) {
	f.version++
	return f.snapshotLocked(), f.listener
}

func (f *FormController) snapshotLocked() domain.State {
	s := domain.State{
		Version:   f.version,
		URL:       f.url,
		Phase:     f.phase,
		Valid:     validator.IsValidURL(f.url),
		CanSubmit: f.canSubmitLocked(),
		Loading:   f.phase == domain.PhaseSubmitting,
	}
	if f.phase == domain.PhaseSuccess && f.result != nil {
		r := *f.result
		s.Result = &r
	}
	if f.phase == domain.PhaseFailure {
		s.Error = f.errMsg
	}
	if f.alert != nil {
		a := *f.alert
		s.Alert = &a
	}
	return s
}

func emit(l Listener, e domain.Event) {
	if l != nil {
		l(e)
	}
}

// truncate limits s to max runes
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
