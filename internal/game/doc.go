// Package game implements the turn-based game session state machine played
// between a speech-language pathologist and a child.
//
// A GameSession moves waiting -> active <-> paused -> completed, with
// cancelled reachable from any non-terminal status. All mutation goes
// through Decide, which takes a snapshot and a Command and returns the next
// snapshot together with the actions it appended. Nothing in this package
// logs, blocks or touches storage; persistence and locking belong to the
// caller.
package game
