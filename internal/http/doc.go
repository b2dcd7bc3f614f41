// Package http exposes the meal access API over chi.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"username","password"}. The
//     token is returned in the body, the `X-Session-Token` header and the
//     `session_token` cookie.
//   - POST /logout: revokes the current session and clears the cookie.
//   - POST /sessions/current/reauthenticate: re-checks the password and unlocks
//     the report endpoints for a short window.
//   - GET /venues, POST /venues, PUT /venues/{name}, DELETE /venues/{name}:
//     venues owned by the caller (all venues for super admins).
//   - POST /venues/{name}/meals: registers a meal by JSON {"document"} or a
//     multipart "photo". 201 authorized, 403 denied with the reason, 404 no
//     such employee or venue, 422 no face, several faces or invalid input.
//   - /employees and /employees/{id}: employee CRUD, plus PUT .../venues to
//     replace permitted venues and PUT/DELETE .../face for biometric enrollment.
//   - /admins and /admins/{username}: super admin account management.
//   - GET /reports/meals and GET /reports/meals.csv: filtered meal listings.
//   - GET /healthz and GET /metrics.
//
// Request/response DTOs live alongside their respective handlers.
package http
