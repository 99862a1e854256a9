// Package engine implements the mission-orchestration core: the event
// bus, the game-time scheduler, the trigger/mission registry, the
// objective state machine, and the scripted-event enricher.
//
// Everything communicates through the synchronous Bus. A bus emit
// dispatches to all current subscribers in subscription order before
// returning, so component behavior is fully determined by call order.
// The only suspension points are scheduler timers: a fired timer calls
// back into the registry, which emits follow-up events on the bus.
//
// There is one logical mutator at a time. The registry guards its
// bookkeeping maps with a mutex but never holds it across a bus emit,
// so handlers are free to call back into the registry.
//
// Time is game time: a requested delay is divided by the current speed
// multiplier to get a real delay. Changing speed live re-arms every
// outstanding timer against the remaining game time, so a timer never
// fires early and never fires twice. Wall-clock access goes through the
// Timekeeper interface so tests can drive timers deterministically.
package engine
