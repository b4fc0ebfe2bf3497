// Package httpapi is the HTTP boundary consumed by the static front end.
//
// Endpoints:
//
//	GET  /qr            scan code as a PNG data URL, 404 until generated
//	GET  /status        {ready, qrReady}
//	GET  /groups        live group list, [] unless the session is ready
//	GET  /jobs          pending deferred jobs
//	POST /send-message  multipart broadcast submission
//	GET  /uploads/...   stored attachments
//
// The API carries no authentication; deploy it behind something that does.
package httpapi
