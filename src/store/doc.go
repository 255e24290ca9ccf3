// Package store persists the models a node receives, keyed by round and
// origin.
//
// Two implementations are provided: InmemStore keeps everything in memory and
// is lost on shutdown; BadgerStore writes through to a badger database in the
// node's data directory so that the inbox of the current round can be
// reloaded after a restart.
package store
