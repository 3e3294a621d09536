// Package http provides HTTP handlers and middleware for the calendar API.
//
// Every route except /invitations/respond, /healthz and /metrics requires an
// identity assertion made by the upstream identity layer:
//   - X-Calendar-User-Id, X-Calendar-User-Email, X-Calendar-User-Name: the actor.
//   - X-Calendar-Signature: hex HMAC-SHA256 over the three values.
//   - X-Provider-Access-Token (optional): the actor's calendar provider credential.
//
// The router exposes the following endpoints:
//   - GET /events?start&end, POST /events: list within a window, create.
//   - GET /events/search?q, GET /events/upcoming, GET /events/categories.
//   - GET, PATCH, DELETE /events/{id}: fetch, partial update, delete. Mutations
//     report the provider mirror outcome in `provider_sync`.
//   - GET, POST /events/{id}/attendees and DELETE /events/{id}/attendees?email=.
//   - POST /sync: pulls provider events into the local store.
//   - GET /activities?limit, GET /stats.
//   - GET or POST /invitations/respond: token gated invitation answer.
//   - GET /healthz, GET /metrics.
//
// Errors are returned as {"error_code","message","errors"}. Request/response
// DTOs live alongside their respective handlers so tests and documentation
// share the same ground truth.
package http
