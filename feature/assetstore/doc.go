// Package assetstore persists destination documents in a SQL database.
//
// Documents live in the asset_documents table, one row per record, with the
// record payload serialized as JSON in the data column. Archiving flips the
// type column to archived_asset so archived documents keep their id and can
// be revived by a later synchronization.
//
// Downstream data published against a document (products, versions) is kept
// in asset_dependents. FindDependents queries that table in chunks so large
// projects do not exceed driver placeholder limits.
//
// BulkWrite runs every operation of a synchronization in one transaction.
// Failures are returned as reconcile transport errors.
package assetstore
