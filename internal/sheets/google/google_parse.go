package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// rowRef locates a mirrored transaction: its 1-based sheet row and version.
type rowRef struct {
	row     int
	version int64
}

type sheetIndex struct {
	rows      map[string]rowRef
	nextRow   int
	expiresAt time.Time
}

// parseIndex builds the row index of a ledger tab from its A:J values.
// Blank rows, the header row and rows without a transaction id are skipped.
func parseIndex(values [][]interface{}) *sheetIndex {
	idx := &sheetIndex{rows: make(map[string]rowRef), nextRow: len(values) + 1}
	for i, raw := range values {
		row := toStrings(raw)
		id := safeGet(row, 0)
		if id == "" || strings.EqualFold(id, "transaction_id") {
			continue
		}
		version, err := strconv.ParseInt(safeGet(row, 9), 10, 64)
		if err != nil {
			version = 0
		}
		idx.rows[id] = rowRef{row: i + 1, version: version}
	}
	return idx
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
