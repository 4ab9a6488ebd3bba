// Package events fans resource-change notifications out to WebSocket
// subscribers and, across instances, through Redis pub/sub. It is
// registered against a transaction via txn.PostCommit so a change is
// only ever announced once the write that produced it has durably
// committed.
package events
