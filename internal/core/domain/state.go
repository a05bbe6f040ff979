package domain

// StateKind tags the variant of an authentication State.
type StateKind int

const (
	// StateUnknown is the initial kind, before identity was first resolved.
	StateUnknown StateKind = iota
	// StateAuthenticating means a refresh, login or registration is in flight.
	StateAuthenticating
	StateAuthenticated
	// StateAnonymous means the server confirmed there is no session.
	StateAnonymous
)

func (k StateKind) String() string {
	switch k {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is the session lifecycle as seen by the UI. User is set only for
// StateAuthenticated.
type State struct {
	Kind StateKind
	User *User
}

func Unknown() State        { return State{Kind: StateUnknown} }
func Authenticating() State { return State{Kind: StateAuthenticating} }
func Anonymous() State      { return State{Kind: StateAnonymous} }

func Authenticated(u User) State {
	return State{Kind: StateAuthenticated, User: &u}
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.Kind == StateAuthenticated && s.User != nil
}

// Resolved reports whether the state is one of the stable kinds.
func (s State) Resolved() bool {
	return s.Kind == StateAuthenticated || s.Kind == StateAnonymous
}

func (s State) String() string {
	if s.IsAuthenticated() {
		return s.Kind.String() + "(" + s.User.Username + ")"
	}
	return s.Kind.String()
}
