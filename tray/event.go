package tray

// Event is emitted when the user picks a menu entry.
type Event interface {
	isEvent()
}

type (
	EventSignIn                  struct{}
	EventSignOut                 struct{}
	EventCancelSignIn            struct{}
	EventAdminPortal             struct{}
	EventRetryPortalConnection   struct{}
	EventEnableInternetResource  struct{}
	EventDisableInternetResource struct{}
	EventQuit                    struct{}

	EventAddFavorite    struct{ ResourceID string }
	EventRemoveFavorite struct{ ResourceID string }
	// EventCopy puts Text on the clipboard.
	EventCopy struct{ Text string }
	// EventShowWindow opens a secondary window.
	EventShowWindow struct{ Window Window }
	// EventURL opens URL in the browser.
	EventURL struct{ URL string }
)

func (EventSignIn) isEvent()                  {}
func (EventSignOut) isEvent()                 {}
func (EventCancelSignIn) isEvent()            {}
func (EventAdminPortal) isEvent()             {}
func (EventRetryPortalConnection) isEvent()   {}
func (EventEnableInternetResource) isEvent()  {}
func (EventDisableInternetResource) isEvent() {}
func (EventQuit) isEvent()                    {}
func (EventAddFavorite) isEvent()             {}
func (EventRemoveFavorite) isEvent()          {}
func (EventCopy) isEvent()                    {}
func (EventShowWindow) isEvent()              {}
func (EventURL) isEvent()                     {}
