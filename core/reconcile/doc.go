// Package reconcile keeps a project-management source tree and a destination
// document store consistent.
//
// Both sides are edited independently. A run reads both sides fresh, decides
// which records to create, update or archive, and which source entities must
// be recreated, renamed back or moved back, then commits source writes
// incrementally and all destination writes as a single bulk write.
//
// # Stages
//
// A run goes through these stages, all sharing one SyncContext:
//
//  1. Load: entities, attribute definitions, active and archived records are
//     queried concurrently.
//  2. Validate: ignored subtrees, invalid names and duplicate names are pruned.
//  3. Resolve attributes: hierarchical values inherit top-down.
//  4. Identify: nodes are mapped to records by cross reference, back-pointer
//     or name.
//  5. Classify: create, update and archive lists in hierarchy order.
//  6. Changeability: records with downstream dependents, and their
//     ancestors, are pinned.
//  7. Archive, Create, Update: pinned records are never renamed, moved or
//     archived; the source tree is corrected instead.
//  8. Commit: documents are validated against the embedded schemas and
//     written in one bulk write.
//
// # Failure model
//
// Validation and identity problems prune the affected subtree and are
// reported. A TransportError aborts the run; source writes already applied
// are kept and the destination is left untouched.
//
// # Usage Example
//
//	engine, err := reconcile.NewEngine(source, store, logger, reconcile.Options{})
//	if err != nil {
//	    return err
//	}
//	report := engine.Synchronize(ctx, "MyProject")
package reconcile
