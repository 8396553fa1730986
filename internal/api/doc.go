// Package api provides the HTTP transport and wire types for the requisition
// backend.
//
// # Overview
//
// The package defines the closed Stage set, the board Item, the shared
// response Envelope and a Client that executes one logical Request against
// one explicit base address. Choosing which address to use, retrying and
// substituting synthetic data are the gateway package's job; this package
// only reports what a single attempt produced.
//
// # Files
//
//   - stage.go: the five board stages, wire labels and aliases
//   - types.go: Operation keys, Request builders, Envelope and payload types
//   - client.go: HTTP client implementation and request/response handling
//
// # Endpoints
//
//   - GET  /api/cards                 board listing (filters as query params)
//   - POST /api/update-card-status    {cardId, newStatus}
//   - GET  /api/dashboard-stats       summary statistics
//   - GET  /api/sla                   SLA targets and performance
//   - POST /api/add-sample-data       seed demo requisitions
//   - GET  /api/health                reachability probe, status code only
//   - OPTIONS /api/login              wake-up nudge
//
// # Error Handling
//
// Client.Do returns an error for every outcome the gateway must treat as a
// failed attempt:
//
//   - "create request" / "execute request": transport failures and timeouts
//   - "api <path> returned status N": HTTP 4xx/5xx
//   - "decode response": malformed JSON or an unknown stage label
//   - ErrUnsuccessful: a well-formed envelope with success=false
//
// Items decoded from a response never carry Synthetic=true; the field is not
// part of the wire format.
package api
