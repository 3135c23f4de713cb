// Package history keeps the read-only record of finalized snapshot rounds.
//
// Once a round completes at a process, its merged state vector and outcome
// never change. The Store interface records them by round index; InmemStore
// keeps a bounded window in memory, and BadgerStore additionally persists
// every round to a Badger database so the history survives restarts.
package history
