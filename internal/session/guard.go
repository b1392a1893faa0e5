package session

const (
	LoginPath     = "/auth"
	DashboardPath = "/dashboard"
)

type RouteKind int

const (
	// Protected routes require a signed-in user.
	Protected RouteKind = iota
	// Public routes (sign-in, sign-up) are only for signed-out users.
	Public
)

type Action int

const (
	RenderLoading Action = iota
	Redirect
	RenderChildren
)

type Decision struct {
	Action   Action
	Location string
}

// Decide maps the session state to what a route of the given kind does.
func Decide(kind RouteKind, st State) Decision {
	switch st.Status {
	case StatusAuthenticated:
		if kind == Public {
			return Decision{Action: Redirect, Location: DashboardPath}
		}
		return Decision{Action: RenderChildren}
	case StatusUnauthenticated:
		if kind == Protected {
			return Decision{Action: Redirect, Location: LoginPath}
		}
		return Decision{Action: RenderChildren}
	default:
		return Decision{Action: RenderLoading}
	}
}
