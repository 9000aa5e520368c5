package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// UserID returns the authenticated staff user's id.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated staff user's role, or "" for anonymous
// requests.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}
