package tray

import (
	"fmt"
	"sort"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/ipc"
)

const (
	documentationURL = "https://www.vpn-client.dev/kb"
	supportURL       = "https://www.vpn-client.dev/support"
)

// Entry is one row of a menu. An entry with a nil Event and no Submenu is
// shown disabled. A zero Entry with Separator set draws a line.
type Entry struct {
	Title     string
	Tooltip   string
	Event     Event
	Checked   bool
	Separator bool
	Submenu   []Entry
}

// Menu is the full tray menu.
type Menu struct {
	Entries []Entry
}

func item(title string, ev Event) Entry {
	return Entry{Title: title, Event: ev}
}

func disabled(title string) Entry {
	return Entry{Title: title}
}

func separator() Entry {
	return Entry{Separator: true}
}

func submenu(title string, entries ...Entry) Entry {
	return Entry{Title: title, Submenu: entries}
}

// BuildMenu lays out the menu for state.
func BuildMenu(state AppState) Menu {
	var entries []Entry

	switch c := state.Connlib.(type) {
	case SignedIn:
		entries = signedInEntries(c)
	case WaitingForBrowser:
		entries = []Entry{
			disabled("Waiting for browser..."),
			item("Cancel sign-in", EventCancelSignIn{}),
		}
	case WaitingForPortal:
		entries = []Entry{
			disabled("Connecting to portal..."),
			item("Cancel sign-in", EventCancelSignIn{}),
		}
	case WaitingForTunnel:
		entries = []Entry{
			disabled("Raising tunnel..."),
			item("Cancel sign-in", EventCancelSignIn{}),
		}
	case RetryingConnection:
		entries = []Entry{
			disabled("No Internet or portal connection"),
			item("Retry sign-in", EventRetryPortalConnection{}),
			item("Sign out", EventSignOut{}),
		}
	case Quitting:
		return Menu{Entries: []Entry{disabled("Quitting...")}}
	default:
		entries = []Entry{item("Sign in", EventSignIn{})}
	}

	entries = append(entries, separator(),
		item("Admin Portal...", EventAdminPortal{}),
		submenu("Help",
			item("Documentation...", EventURL{URL: documentationURL}),
			item("Support...", EventURL{URL: supportURL}),
		),
		item("About "+common.AppName, EventShowWindow{Window: WindowAbout}),
		item("Settings", EventShowWindow{Window: WindowSettings}),
		separator(),
	)

	if state.Release != nil {
		entries = append(entries, item(
			fmt.Sprintf("Download version %s", state.Release.Version),
			EventURL{URL: state.Release.DownloadURL},
		))
	}

	entries = append(entries, item("Disconnect and quit "+common.AppName, EventQuit{}))
	return Menu{Entries: entries}
}

func signedInEntries(s SignedIn) []Entry {
	entries := []Entry{
		disabled("Signed in as " + s.ActorName),
		item("Sign out", EventSignOut{}),
		separator(),
	}

	resources := append([]ipc.Resource(nil), s.Resources...)
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Name < resources[j].Name
	})

	var favorites, others []Entry
	for _, r := range resources {
		e := resourceEntry(s, r)
		if s.isFavorite(r.ID) {
			favorites = append(favorites, e)
		} else {
			others = append(others, e)
		}
	}

	// Without favorites the resource list is shown flat.
	if len(favorites) == 0 {
		entries = append(entries, disabled("Resources"))
		return append(entries, others...)
	}

	entries = append(entries, disabled("Favorite Resources"))
	entries = append(entries, favorites...)
	if len(others) > 0 {
		entries = append(entries, separator(), submenu("Other Resources", others...))
	}
	return entries
}

func resourceEntry(s SignedIn, r ipc.Resource) Entry {
	if r.IsInternetResource() {
		return internetResourceEntry(s, r)
	}

	entries := []Entry{
		disabled("Resource"),
		item(r.Name, EventCopy{Text: r.Name}),
	}
	if r.Address != "" {
		entries = append(entries, item(r.Address, EventCopy{Text: r.Address}))
	}
	if r.Status != "" {
		entries = append(entries, separator(), disabled("Status: "+r.Status))
	}
	entries = append(entries, separator(), favoriteToggle(s, r))

	return submenu(r.Name, entries...)
}

func internetResourceEntry(s SignedIn, r ipc.Resource) Entry {
	title := r.Name
	toggle := item("Enable this resource", EventEnableInternetResource{})
	if s.internetEnabled() {
		title += " (enabled)"
		toggle = item("Disable this resource", EventDisableInternetResource{})
	} else {
		title += " (disabled)"
	}

	return submenu(title,
		disabled("All network traffic"),
		toggle,
		separator(),
		favoriteToggle(s, r),
	)
}

func favoriteToggle(s SignedIn, r ipc.Resource) Entry {
	if s.isFavorite(r.ID) {
		return Entry{Title: "Remove from favorites", Event: EventRemoveFavorite{ResourceID: r.ID}, Checked: true}
	}
	return item("Add to favorites", EventAddFavorite{ResourceID: r.ID})
}
