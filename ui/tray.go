package ui

import (
	"sync"

	"fyne.io/systray"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/controller"
	"github.com/yllada/vpn-client/tray"
)

// Tray draws tray.Menu with systray and turns clicks into requests.
//
// systray can't edit a menu in place, so every SetMenu rebuilds it. Click
// listeners from the previous build are stopped first.
type Tray struct {
	requests chan<- controller.Request

	mu    sync.Mutex
	ready bool
	// pending holds the latest state set before systray was ready.
	pending *tray.AppState
	stop    chan struct{}
}

// NewTray returns a tray that sends clicks on requests.
func NewTray(requests chan<- controller.Request) *Tray {
	return &Tray{requests: requests}
}

// Run starts the tray. It blocks until Quit and must be called from the
// main goroutine. onReady runs once the icon is registered.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		systray.SetTitle(common.AppName)
		systray.SetIcon(iconPNG(tray.Icon{Base: tray.BaseSignedOut}))

		t.mu.Lock()
		t.ready = true
		pending := t.pending
		t.pending = nil
		t.mu.Unlock()

		if pending != nil {
			t.SetMenu(*pending)
		}
		if onReady != nil {
			onReady()
		}
	}, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	common.LogDebug("Tray exited")
}

// SetIcon replaces the icon without touching the menu.
func (t *Tray) SetIcon(icon tray.Icon) {
	systray.SetIcon(iconPNG(icon))
}

// SetMenu rebuilds the menu, icon and tooltip for state.
func (t *Tray) SetMenu(state tray.AppState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		t.pending = &state
		return
	}

	if t.stop != nil {
		close(t.stop)
	}
	t.stop = make(chan struct{})

	systray.SetIcon(iconPNG(state.Icon()))
	systray.SetTooltip(common.AppName + ": " + state.Tooltip())
	systray.ResetMenu()

	for _, e := range tray.BuildMenu(state).Entries {
		if e.Separator {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(e.Title, e.Tooltip)
		t.fill(item, e)
	}
}

func (t *Tray) fill(item *systray.MenuItem, e tray.Entry) {
	if e.Checked {
		item.Check()
	}
	for _, sub := range e.Submenu {
		if sub.Separator {
			// Submenus have no separator; an empty disabled row stands in.
			item.AddSubMenuItem("", "").Disable()
			continue
		}
		var child *systray.MenuItem
		if sub.Checked {
			child = item.AddSubMenuItemCheckbox(sub.Title, sub.Tooltip, true)
		} else {
			child = item.AddSubMenuItem(sub.Title, sub.Tooltip)
		}
		t.fill(child, sub)
	}

	if e.Event == nil {
		if len(e.Submenu) == 0 {
			item.Disable()
		}
		return
	}
	go t.forward(item.ClickedCh, e.Event, t.stop)
}

func (t *Tray) forward(clicks <-chan struct{}, ev tray.Event, stop <-chan struct{}) {
	for {
		select {
		case <-clicks:
			select {
			case t.requests <- controller.TrayEvent{Event: ev}:
			case <-stop:
				return
			}
		case <-stop:
			return
		}
	}
}
