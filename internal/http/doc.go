// Package http exposes the meeting tracker over a JSON API routed by chi.
//
// The router exposes the following endpoints:
//   - GET/POST /api/meetings, GET/PUT/DELETE /api/meetings/{id}: meeting
//     management exchanging the `meetingDTO` payload. POST accepts JSON or a
//     multipart form with a `meeting` JSON part and `files` parts. Listing
//     takes `from`, `to` and `location_id` query filters.
//   - GET/POST /api/meetings/{id}/documents, GET /api/meetings/{id}/documents/bundle,
//     GET /api/documents/{id}/download, DELETE /api/documents/{id}: document
//     upload, listing, retrieval and removal. Document payloads carry a
//     download_url and never the stored path.
//   - GET/POST/DELETE /api/attendees, GET /api/attendees/exists,
//     GET/PUT/DELETE /api/attendees/{id}: attendance registrations. DELETE on
//     the collection takes `user_id` and `meeting_id` and is repeatable.
//   - GET /api/meetings/{id}/attendees, GET /api/meetings/{id}/attendees/count,
//     GET /api/users/{id}/meetings: attendance queries.
//   - GET/POST /api/users, GET/PUT/DELETE /api/users/{id} and the same shape
//     under /api/locations.
//
// Failures answer with {"error_code","message","request_id"}; error_code is
// the application reason code (validation, not_found, empty, conflict,
// io_failure, unexpected) or bad_request for malformed input.
package http
