package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/separk-1/incident-regulation-mapping/pkg/common"
	"github.com/separk-1/incident-regulation-mapping/pkg/logger"
)

// Decode parses one incident record from its JSON document. When the
// document carries no filename field, name (usually the source file or
// object key) is used as the record identity.
func Decode(data []byte, name string) (*common.IncidentRecord, error) {
	record := new(common.IncidentRecord)
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode incident record %s: %w", name, err)
	}
	if strings.TrimSpace(record.Filename) == "" {
		record.Filename = filepath.Base(name)
	}
	return record, nil
}

// LoadDir reads every .json file in dir as one incident record.
// Unreadable or undecodable files are logged and skipped so one bad
// extraction does not block the corpus.
func LoadDir(dir string) ([]*common.IncidentRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read records directory %s: %w", dir, err)
	}

	records := make([]*common.IncidentRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("[Records] Skipping unreadable file", "path", path, "err", err)
			continue
		}

		record, err := Decode(data, entry.Name())
		if err != nil {
			logger.Warn("[Records] Skipping undecodable file", "path", path, "err", err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}
