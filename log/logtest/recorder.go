/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-ttlcache/log"
)

// RecordedEntry represents recorded entry which was logged.
type RecordedEntry struct {
	LoggerName string
	Fields     []log.Field
	Level      log.Level
	Time       time.Time
	Text       string
}

// FindField tries to find field in logging entry by key.
// Fields passed to the logging call are checked before the ones added by With.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			return &re.Fields[i], true
		}
	}
	return nil, false
}

// recording is shared by a Recorder and all loggers derived from it via With/WithLevel.
type recording struct {
	mu      sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic // logf.EntryWriter passes entries by value.
func (rec *recording) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(fields, e.Fields...)
	fields = append(fields, e.DerivedFields...)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.entries = append(rec.entries, RecordedEntry{
		LoggerName: e.LoggerName,
		Fields:     fields,
		Level:      levels[e.Level],
		Time:       e.Time,
		Text:       e.Text,
	})
}

func (rec *recording) filter(fn func(entry RecordedEntry) bool, limit int) []RecordedEntry {
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	var res []RecordedEntry
	for _, entry := range rec.entries {
		if fn(entry) {
			res = append(res, entry)
			if limit > 0 && len(res) == limit {
				break
			}
		}
	}
	return res
}

var levels = map[logf.Level]log.Level{
	logf.LevelError: log.LevelError,
	logf.LevelWarn:  log.LevelWarn,
	logf.LevelInfo:  log.LevelInfo,
	logf.LevelDebug: log.LevelDebug,
}

// Recorder is an implementation of log.FieldLogger that records all logged entries (all levels, synchronously)
// for later inspection in tests. It's safe for concurrent use, e.g. by the cache's background sweeper.
type Recorder struct {
	*log.LogfAdapter
	rec *recording
}

// NewRecorder returns an initialized Recorder.
func NewRecorder() *Recorder {
	rec := &recording{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, rec)}, rec}
}

// With returns a new Recorder with the given additional fields. Entries are recorded to the same storage.
func (r *Recorder) With(fs ...log.Field) log.FieldLogger {
	return &Recorder{r.LogfAdapter.With(fs...).(*log.LogfAdapter), r.rec}
}

// WithLevel returns a new Recorder with the given additional level check. Entries are recorded to the same storage.
func (r *Recorder) WithLevel(level log.Level) log.FieldLogger {
	return &Recorder{r.LogfAdapter.WithLevel(level).(*log.LogfAdapter), r.rec}
}

// Entries returns all recorded logging entries.
func (r *Recorder) Entries() []RecordedEntry {
	return r.rec.filter(func(RecordedEntry) bool { return true }, 0)
}

// FindEntry tries to find the first recorded logging entry with the given message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	return r.FindEntryByFilter(textFilter(msg))
}

// FindEntryByFilter tries to find the first recorded logging entry matching the filter.
func (r *Recorder) FindEntryByFilter(filter func(entry RecordedEntry) bool) (RecordedEntry, bool) {
	if found := r.rec.filter(filter, 1); len(found) != 0 {
		return found[0], true
	}
	return RecordedEntry{}, false
}

// FindAllEntries returns all recorded logging entries with the given message.
func (r *Recorder) FindAllEntries(msg string) []RecordedEntry {
	return r.FindAllEntriesByFilter(textFilter(msg))
}

// FindAllEntriesByFilter returns all recorded logging entries matching the filter.
func (r *Recorder) FindAllEntriesByFilter(filter func(entry RecordedEntry) bool) []RecordedEntry {
	return r.rec.filter(filter, 0)
}

// Reset removes all recorded entries.
func (r *Recorder) Reset() {
	r.rec.mu.Lock()
	r.rec.entries = nil
	r.rec.mu.Unlock()
}

func textFilter(msg string) func(entry RecordedEntry) bool {
	return func(entry RecordedEntry) bool {
		return entry.Text == msg
	}
}
