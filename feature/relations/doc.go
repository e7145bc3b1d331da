// Package relations exposes relation end-point inspection over HTTP and the CLI.
//
// Every operation opens its own root transaction over the database item source, so
// nothing is shared between requests.
//
// # Operations
//
//   - Check: Loads a virtual end-point, optionally after registering claimed foreign keys,
//     reports synchronization and commits under the configured sync policy.
//   - Snapshot / Restore: Stores the serialized load state in object storage and reads it back.
//   - Drift: Compares a stored snapshot with the data loaded now.
//
// # HTTP Endpoints
//
//   - GET /relations : Lists the configured relations.
//   - GET /relations/:relation/:class/:id : Checks an end-point (supports ?claim= and ?synchronize=true).
//   - POST /relations/:relation/:class/:id/snapshot : Stores a snapshot.
//   - GET /relations/:relation/:class/:id/snapshot : Reports a stored snapshot.
//   - DELETE /relations/:relation/:class/:id/snapshot : Removes a stored snapshot.
//   - GET /relations/:relation/:class/:id/drift : Compares the snapshot with the database.
//   - DELETE /relations/:relation/snapshots : Removes all snapshots of a relation.
package relations
