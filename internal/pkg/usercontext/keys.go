package usercontext

const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsSuperadmin  = "isSuperadmin"
	KeyFromProtected = "from_protected"
)
