// Package sync exposes hierarchy synchronization over HTTP.
//
// The Service runs the reconcile engine for one project, records Prometheus
// metrics and archives every report in object storage as
// <prefix>/<project>/<timestamp>.json plus <prefix>/<project>/latest.json.
// Old timestamped reports are pruned beyond the configured retention.
//
// # Routes
//
//   - POST /sync/:project: run a synchronization (?dry_run=true for a plan only)
//   - GET /sync/:project/report: the latest archived report
//   - GET /sync/:project/reports: archived report keys, oldest first
//   - GET /sync/:project/records: destination records (?archived=true)
//   - POST /sync/:project/records/:id/dependents: register downstream data
package sync
