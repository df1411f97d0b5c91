// Package uiloop provides the single UI thread the session manager runs on.
//
// Loop serializes tasks on one goroutine and backs timers with the wall
// clock. Manual is a virtual-clock loop that only moves when the caller
// advances it; tests and scripted replays use it for determinism.
package uiloop
