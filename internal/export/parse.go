package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/internal/types"
)

// maxLineBytes bounds a single interchange line. Large design documents
// fit comfortably; anything bigger is corrupt.
const maxLineBytes = 2 * 1024 * 1024

// DecodeJSONL parses interchange content back into records. Blank lines
// are ignored; unparseable lines and unresolved merge-conflict markers
// abort with a CorruptDataError, since partially imported data is worse
// than no import.
func DecodeJSONL(data []byte) ([]Record, error) {
	if err := checkConflictMarkers(data); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &types.CorruptDataError{
				Detail: fmt.Sprintf("line %d is not a valid record: %v", lineNo, err),
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.CorruptDataError{
			Detail: fmt.Sprintf("line %d: %v", lineNo+1, err),
		}
	}
	return records, nil
}

// checkConflictMarkers rejects files still carrying VCS merge conflicts.
// Markers are matched as standalone lines only, so JSON strings that
// happen to contain them do not trip the check.
func checkConflictMarkers(data []byte) error {
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, []byte("<<<<<<< ")) ||
			bytes.Equal(trimmed, []byte("=======")) ||
			bytes.HasPrefix(trimmed, []byte(">>>>>>> ")) {
			return &types.CorruptDataError{
				Detail: "interchange file contains unresolved merge conflict markers",
			}
		}
	}
	return nil
}
