package submission

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateEntry is returned when a field name is appended twice.
var ErrDuplicateEntry = errors.New("duplicate entry")

// Entry is one (field name, value) pair.
type Entry struct {
	FieldName string
	Value     string
}

// EntryLog is the append-only, keyed record of a submission's values.
// Entries keep their append order and a field name appears at most once.
type EntryLog struct {
	entries []Entry
	index   map[string]int
}

// NewEntryLog returns an empty log.
func NewEntryLog() *EntryLog {
	return &EntryLog{index: map[string]int{}}
}

// Append records a value. Empty values are skipped; repeated names fail.
func (l *EntryLog) Append(fieldName, value string) error {
	if value == "" {
		return nil
	}
	if _, ok := l.index[fieldName]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, fieldName)
	}
	l.index[fieldName] = len(l.entries)
	l.entries = append(l.entries, Entry{FieldName: fieldName, Value: value})
	return nil
}

// Len returns the number of recorded entries.
func (l *EntryLog) Len() int {
	return len(l.entries)
}

// Lookup returns the value recorded for fieldName.
func (l *EntryLog) Lookup(fieldName string) (string, bool) {
	i, ok := l.index[fieldName]
	if !ok {
		return "", false
	}
	return l.entries[i].Value, true
}

// Entries returns a copy of the log in append order.
func (l *EntryLog) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Map flattens the log into field name -> value.
func (l *EntryLog) Map() map[string]string {
	out := make(map[string]string, len(l.entries))
	for _, e := range l.entries {
		out[e.FieldName] = e.Value
	}
	return out
}

// Rows converts the log into DataEntry rows for submissionID.
func (l *EntryLog) Rows(submissionID uint) []DataEntry {
	rows := make([]DataEntry, 0, len(l.entries))
	for _, e := range l.entries {
		rows = append(rows, DataEntry{SubmissionID: submissionID, FieldName: e.FieldName, Value: e.Value})
	}
	return rows
}

// LogFromRows rebuilds a log from stored rows in their retrieval order.
func LogFromRows(rows []DataEntry) *EntryLog {
	l := NewEntryLog()
	for _, row := range rows {
		_ = l.Append(row.FieldName, row.Value)
	}
	return l
}

// logFromValues records the values that become Data Entries: fields in
// schema order first, then any extra keys sorted by name. Reserved keys are
// excluded.
func logFromValues(order []string, values map[string]string) *EntryLog {
	l := NewEntryLog()
	seen := make(map[string]bool, len(values))
	for _, name := range order {
		if isReserved(name) {
			continue
		}
		if v, ok := values[name]; ok {
			_ = l.Append(name, v)
			seen[name] = true
		}
	}

	extra := make([]string, 0, len(values))
	for name := range values {
		if !seen[name] && !isReserved(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		_ = l.Append(name, values[name])
	}
	return l
}
