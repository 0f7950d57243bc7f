package tray

// IconBase is the main state shown by the tray icon.
type IconBase int

const (
	BaseSignedOut IconBase = iota
	BaseBusy
	BaseSignedIn
)

// Icon is a base state plus an optional update badge.
type Icon struct {
	Base        IconBase
	UpdateReady bool
}

// IconTerminating is shown after the tunnel service went away.
func IconTerminating() Icon {
	return Icon{Base: BaseSignedOut}
}

// Window is a secondary window reachable from the menu.
type Window int

const (
	WindowAbout Window = iota
	WindowSettings
)

func (w Window) String() string {
	switch w {
	case WindowAbout:
		return "About"
	case WindowSettings:
		return "Settings"
	default:
		return "Unknown"
	}
}
