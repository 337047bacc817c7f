// Package httpapi exposes the credcore engine over HTTP.
//
// Routes:
//
//	POST /api/auth/login    {username, password} -> session body + refreshToken cookie
//	POST /api/auth/refresh  refreshToken cookie  -> session body + rotated cookie
//	POST /api/auth/logout   clears the cookie and revokes the token
//	GET  /api/auth/me       claims of the bearer access token
//	GET  /healthz
//	GET  /metrics           when Options.Metrics is set
//
// The refresh token never appears in a response body. It travels only in an
// HttpOnly, SameSite=Strict cookie scoped to /api/auth. Every token failure on
// refresh is answered with the same 401 body and clears the cookie.
package httpapi
