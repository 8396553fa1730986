// Package ui renders the requisition board in the terminal with Bubble Tea.
//
// The model never talks to the backend directly. It reads board snapshots on
// a tick, follows health events and move warnings through channels, and hands
// moves, refreshes and wake-ups to the board and health monitor as commands
// so the render loop never blocks on the network.
//
// Layout:
//
//	orbit [ONLINE] http://primary:5000 [SAMPLE DATA] updated 14:32:15
//	╭ Solicitado 2 ╮╭ Em Análise 1 ╮╭ Aprovado 0 ╮╭ Recebido 0 ╮╭ Rejeitado 0 ╮
//	│ RC-1001      ││ RC-1002 …    ││ empty      ││ empty      ││ empty       │
//	╰──────────────╯╰──────────────╯╰────────────╯╰────────────╯╰─────────────╯
//	notice or key hints
//
// A trailing … marks a card whose move is still waiting for the backend; !
// marks a card that sits where it was dropped without backend confirmation.
package ui
