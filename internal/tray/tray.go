// Package tray provides the system tray menu for the mudra sign trainer.
package tray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/session"
)

// Session is the part of the session controller the tray drives.
type Session interface {
	State() session.State
	StartTraining() error
	StopTraining() error
	StartDetecting() error
	StopDetecting() error
}

// Tray is the system tray application. It is also a notify.Notifier so
// menu titles follow session events.
type Tray struct {
	session Session
	logger  *slog.Logger

	mu     sync.RWMutex
	onOpen func()
	onQuit func()
	state  session.State
	last   string

	// Menu items stored for later updates
	menuTraining  *systray.MenuItem
	menuDetecting *systray.MenuItem
	menuLast      *systray.MenuItem
}

// New creates a Tray driving s.
func New(s Session, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		session: s,
		logger:  logger.With("component", "tray"),
		state:   s.State(),
	}
}

// OnOpen sets the callback for the "Open in Browser" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called. It must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand-sign trainer")

	t.mu.Lock()
	training, detecting := menuLabels(t.state)
	t.menuTraining = systray.AddMenuItem(training, "Record new signs")
	t.menuDetecting = systray.AddMenuItem(detecting, "Classify signs live")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last detected sign")
	t.menuLast.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the trainer in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuTraining.ClickedCh:
				t.toggleTraining()
			case <-t.menuDetecting.ClickedCh:
				t.toggleDetecting()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) toggleTraining() {
	var err error
	if t.session.State() == session.Training {
		err = t.session.StopTraining()
	} else {
		err = t.session.StartTraining()
	}
	if err != nil {
		t.logger.Warn("training toggle failed", "err", err)
	}
}

func (t *Tray) toggleDetecting() {
	var err error
	if t.session.State() == session.Detecting {
		err = t.session.StopDetecting()
	} else {
		err = t.session.StartDetecting()
	}
	if err != nil {
		t.logger.Warn("detecting toggle failed", "err", err)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Notify updates the menu from session events. It never calls back into
// the session.
func (t *Tray) Notify(e notify.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case notify.SessionStarted:
		t.state = session.State(e.Mode)
	case notify.SessionStopped:
		t.state = session.Idle
		if e.Mode == string(session.Detecting) {
			t.last = ""
		}
	case notify.ClassificationChanged:
		t.last = e.Name
	default:
		return
	}

	training, detecting := menuLabels(t.state)
	if t.menuTraining != nil {
		t.menuTraining.SetTitle(training)
		t.menuDetecting.SetTitle(detecting)
		t.menuLast.SetTitle(lastTitle(t.last))
	}
}

// Last returns the last classified sign shown in the menu, "" for none.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// State returns the session state the menu currently reflects.
func (t *Tray) State() session.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func menuLabels(s session.State) (training, detecting string) {
	training, detecting = "Start Training", "Start Detecting"
	switch s {
	case session.Training:
		training = "● Stop Training"
	case session.Detecting:
		detecting = "● Stop Detecting"
	}
	return training, detecting
}

func lastTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
