// Package app is orbit's composition root.
//
// # Overview
//
// New loads configuration, opens the session store and builds every
// long-lived component. Start launches the background jobs; Close stops them
// and flushes logs. Run is the TUI entry point and owns the whole lifecycle.
//
// # Data Flow
//
//	┌──────────────┐
//	│   New()      │ Build components
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()         File, .env and ORBIT_* overrides
//	       ├─────> prefs.Open()          Session store (theme, backend, dev mode)
//	       ├─────> endpoint.NewResolver() Primary/fallback preference
//	       ├─────> health.NewMonitor()   Connectivity state machine
//	       ├─────> gateway.NewExecutor() Resilient request path
//	       ├─────> board.New()           Kanban synchronizer
//	       └─────> schedule.New()        Background jobs
//
//	Scheduled jobs:
//	┌─────────────────────────────────────────┐
//	│ health-probe   every probe_interval     │
//	│ board-refresh  every refresh_interval   │
//	│ netwatch       every 5s                 │
//	└─────────────────────────────────────────┘
//
// The board refresh also runs when a move is confirmed and when the backend
// comes back after an outage.
//
// # Error Handling
//
// Configuration and session failures are fatal and returned from New.
// Everything after that degrades: failed requests fall back to synthetic
// data and failed refreshes are logged.
package app
