// Package transaction owns the relation end-points of one transaction level.
//
// A root Transaction loads virtual end-points from an ItemSource, usually the database.
// A sub-transaction loads them from its parent's current view and pushes its changes
// back up on Commit. The parent is read-only while a sub-transaction is active.
//
// A Transaction is not safe for concurrent use.
package transaction
