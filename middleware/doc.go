// Package middleware adapts credcore access token validation to net/http.
//
//   - [Guard] reads "Authorization: Bearer <token>", calls
//     Engine.ValidateAccess and stores the claims in the request context.
//   - [RequireRole] restricts a route to the listed roles.
//
// Every rejection is a bare 401 or 403. The reason is never echoed to the
// client. Token parsing and signature checks stay in the jwt package.
package middleware
