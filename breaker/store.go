package breaker

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/buger/jsonparser"

	"github.com/thrasher-corp/backsim/common/file"
	"github.com/thrasher-corp/backsim/log"
)

// FileStore persists the breaker record map as one JSON document. Writes go
// through a temp file rename so readers never observe a partial write
type FileStore struct {
	path string
}

// NewFileStore returns a file backed store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the record map. A missing file is an empty map. Individual
// records are parsed tolerantly: an unknown status fails closed to Open and
// an unparseable record is skipped rather than poisoning the rest
func (s *FileStore) Load() (map[string]Record, error) {
	if !file.Exists(s.path) {
		return map[string]Record{}, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	records := make(map[string]Record)
	err = jsonparser.ObjectEach(data, func(k, v []byte, vt jsonparser.ValueType, _ int) error {
		rec, parseErr := parseRecord(v)
		if parseErr != nil {
			log.Warnf(log.CircuitBreaker, "skipping unreadable breaker record %q: %v", string(k), parseErr)
			return nil
		}
		records[string(k)] = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corrupt breaker store %v: %w", s.path, err)
	}
	return records, nil
}

// Save writes the record map atomically
func (s *FileStore) Save(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", " ")
	if err != nil {
		return err
	}
	return file.WriteSafe(s.path, data)
}

// parseRecord decodes one persisted record, failing closed to Open on an
// unknown status string
func parseRecord(v []byte) (Record, error) {
	var rec Record
	breakerType, err := jsonparser.GetString(v, "type")
	if err != nil {
		return rec, err
	}
	rec.Type = Type(breakerType)
	rec.Scope, _ = jsonparser.GetString(v, "scope")
	rec.Reason, _ = jsonparser.GetString(v, "reason")

	rawStatus, _ := jsonparser.GetString(v, "status")
	status, err := StringToStatus(rawStatus)
	if err != nil {
		log.Warnf(log.CircuitBreaker, "%v for %q, failing closed to OPEN", err, rawStatus)
		status = Open
	}
	rec.Status = status

	if raw, err := jsonparser.GetString(v, "tripped_at"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.TrippedAt = ts
		}
	}
	if raw, err := jsonparser.GetString(v, "auto_reset_at"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.AutoResetAt = &ts
		}
	}
	if raw, err := jsonparser.GetString(v, "reset_attempted_at"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.ResetAttemptedAt = &ts
		}
	}
	return rec, nil
}
