package reconcile

import (
	"sort"

	"go.uber.org/zap"
)

// Severity of a report entry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Report messages. Entries are grouped by message and subject.
const (
	MsgInvalidName         = "invalid name"
	MsgDuplicateName       = "duplicate name"
	MsgDuplicateIdentity   = "duplicate identity"
	MsgChangeRejected      = "change rejected"
	MsgEntityRecreated     = "entity recreated"
	MsgNonSynchronizable   = "non-synchronizable hierarchy"
	MsgInvalidFPS          = "invalid fps value"
	MsgInvalidAttribute    = "invalid attribute value"
	MsgSourceWriteRejected = "source write rejected"
	MsgInvalidDocument     = "invalid document"
	MsgSyncIgnored         = "sync ignored"
	MsgProjectIgnored      = "project ignored"
	MsgTransportFailure    = "transport failure"
)

// Entry is one grouped report item.
type Entry struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Subject  string   `json:"subject,omitempty"`
	Paths    []string `json:"paths"`
}

// Summary counts what a run did.
type Summary struct {
	Created      int `json:"created"`
	Unarchived   int `json:"unarchived"`
	Updated      int `json:"updated"`
	Archived     int `json:"archived"`
	Recreated    int `json:"recreated"`
	Reverted     int `json:"reverted"`
	Pruned       int `json:"pruned"`
	SourceWrites int `json:"source_writes"`
}

// Report is the outcome of one synchronization run.
type Report struct {
	Project string  `json:"project"`
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	DryRun  bool    `json:"dry_run"`
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// HasErrors reports whether the report holds at least one error entry.
func (r *Report) HasErrors() bool {
	if r == nil {
		return false
	}
	for _, e := range r.Entries {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Entry returns the first entry with the given message.
func (r *Report) Entry(message string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	for _, e := range r.Entries {
		if e.Message == message {
			return e, true
		}
	}
	return Entry{}, false
}

// EntriesFor returns every entry with the given message, one per subject.
func (r *Report) EntriesFor(message string) []Entry {
	if r == nil {
		return nil
	}
	var out []Entry
	for _, e := range r.Entries {
		if e.Message == message {
			out = append(out, e)
		}
	}
	return out
}

// Fields renders the report as zap fields.
func (r *Report) Fields() []zap.Field {
	if r == nil {
		return nil
	}
	counts := map[Severity]int{}
	for _, e := range r.Entries {
		counts[e.Severity] += len(e.Paths)
	}
	return []zap.Field{
		zap.String("project", r.Project),
		zap.Bool("success", r.Success),
		zap.Bool("dry_run", r.DryRun),
		zap.Int("created", r.Summary.Created),
		zap.Int("unarchived", r.Summary.Unarchived),
		zap.Int("updated", r.Summary.Updated),
		zap.Int("archived", r.Summary.Archived),
		zap.Int("recreated", r.Summary.Recreated),
		zap.Int("reverted", r.Summary.Reverted),
		zap.Int("pruned", r.Summary.Pruned),
		zap.Int("errors", counts[SeverityError]),
		zap.Int("warnings", counts[SeverityWarning]),
	}
}

type entryKey struct {
	severity Severity
	message  string
	subject  string
}

// ReportAggregator collects entries from every stage of a run.
// All methods are safe on a nil receiver.
type ReportAggregator struct {
	groups map[entryKey]*Entry
	order  []entryKey
}

// NewReportAggregator creates an empty aggregator.
func NewReportAggregator() *ReportAggregator {
	return &ReportAggregator{groups: make(map[entryKey]*Entry)}
}

// Add records paths under (severity, message). Repeated paths are kept once.
func (a *ReportAggregator) Add(severity Severity, message string, paths ...string) {
	a.AddSubject(severity, message, "", paths...)
}

// AddSubject records paths under (severity, message, subject). Paths about
// different subjects, such as two contested records, stay in separate entries.
func (a *ReportAggregator) AddSubject(severity Severity, message, subject string, paths ...string) {
	if a == nil {
		return
	}
	key := entryKey{severity: severity, message: message, subject: subject}
	e, ok := a.groups[key]
	if !ok {
		e = &Entry{Severity: severity, Message: message, Subject: subject, Paths: []string{}}
		a.groups[key] = e
		a.order = append(a.order, key)
	}
	for _, p := range paths {
		if !containsString(e.Paths, p) {
			e.Paths = append(e.Paths, p)
		}
	}
}

func (a *ReportAggregator) Info(message string, paths ...string) {
	a.Add(SeverityInfo, message, paths...)
}

func (a *ReportAggregator) Warn(message string, paths ...string) {
	a.Add(SeverityWarning, message, paths...)
}

func (a *ReportAggregator) Error(message string, paths ...string) {
	a.Add(SeverityError, message, paths...)
}

// Entries returns the grouped entries, errors first, then by first appearance.
func (a *ReportAggregator) Entries() []Entry {
	if a == nil {
		return []Entry{}
	}
	keys := make([]entryKey, len(a.order))
	copy(keys, a.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].severity.rank() < keys[j].severity.rank()
	})
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := a.groups[k]
		paths := make([]string, len(e.Paths))
		copy(paths, e.Paths)
		out = append(out, Entry{Severity: e.Severity, Message: e.Message, Subject: e.Subject, Paths: paths})
	}
	return out
}

// Report builds the final report.
func (a *ReportAggregator) Report(project string, success bool, message string) *Report {
	return &Report{
		Project: project,
		Success: success,
		Message: message,
		Entries: a.Entries(),
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
