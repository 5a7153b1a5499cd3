package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome = "/"

	// Session
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteLogout   = "/logout"

	// Dashboard (guarded)
	RouteDashboard     = "/dashboard"
	RoutePosts         = "/dashboard/posts"
	RoutePost          = "/dashboard/posts/{id}"
	RoutePostDelete    = "/dashboard/posts/{id}/delete"
	RouteProfile       = "/dashboard/profile"
	RouteProfileDelete = "/dashboard/profile/delete"

	// API Routes
	RouteAPISession = "/api/session"
	RouteMetrics    = "/metrics"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
