package session

import (
	"strings"

	"github.com/jon4hz/parley/pkg/chatapi"
)

// Access is the privilege a view requires.
type Access int

const (
	AccessPublic Access = iota
	AccessAuthenticated
	AccessAdmin
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	case AccessAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// View identifies a navigable view by its path.
type View string

const (
	ViewLogin    View = "/login"
	ViewRegister View = "/register"
	ViewHome     View = "/"
	ViewAdmin    View = "/admin"
)

// Views maps every known view to the access it requires.
var Views = map[View]Access{
	ViewLogin:    AccessPublic,
	ViewRegister: AccessPublic,
	ViewHome:     AccessAuthenticated,
	ViewAdmin:    AccessAdmin,
}

// Resolve maps a path to a known view. Unknown paths resolve to the home view.
func Resolve(path string) View {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	v := View(path)
	if _, ok := Views[v]; ok {
		return v
	}
	return ViewHome
}

// Decide reports whether user may see a view requiring access.
// If not, the returned view is where to redirect.
func Decide(user *chatapi.User, access Access) (View, bool) {
	switch access {
	case AccessAuthenticated:
		if user == nil {
			return ViewLogin, false
		}
	case AccessAdmin:
		if user == nil {
			return ViewLogin, false
		}
		if !user.IsAdmin {
			return ViewHome, false
		}
	}
	return "", true
}

// Authorize applies Decide to the current session.
func (m *Manager) Authorize(access Access) (View, bool) {
	return Decide(m.User(), access)
}

// Navigate resolves path and authorizes it. It returns the view to show,
// which is a redirect target when the requested view is not allowed.
func (m *Manager) Navigate(path string) (View, bool) {
	view := Resolve(path)
	if redirect, ok := m.Authorize(Views[view]); !ok {
		return redirect, false
	}
	return view, true
}
