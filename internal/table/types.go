package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/compress"
)

// SuccessMarker is written last by a committed table.
const SuccessMarker = "_SUCCESS"

// DefaultPartition is the directory value used for null or empty partition
// values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// stagingDir holds uncommitted table files, keyed by run.
const stagingDir = "_temporary"

// ErrIncomplete is returned when reading a table that was never committed.
var ErrIncomplete = errors.New("table has no success marker")

// Spec describes a table destination and how its rows are partitioned.
// Partition columns should be tagged `parquet:"-"` on T so they only live
// in the directory layout.
type Spec[T any] struct {
	Name        string
	Path        string
	PartitionBy []string
	// Partition returns the values of PartitionBy for a row, already
	// formatted. Nil when PartitionBy is empty.
	Partition func(row T) []string
}

// Options control how a table is written.
type Options struct {
	RunID          string
	Compression    string // snappy, gzip, zstd or none
	MaxRowsPerFile int    // 0 means one file per partition
}

// Result summarizes a written or inspected table.
type Result struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Rows       int64  `json:"rows"`
	Partitions int    `json:"partitions"`
	Files      int    `json:"files"`
}

// Codec returns the parquet codec and the file name infix for a
// compression name.
func Codec(name string) (compress.Codec, string, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return &parquet.Snappy, "snappy", nil
	case "gzip":
		return &parquet.Gzip, "gz", nil
	case "zstd":
		return &parquet.Zstd, "zstd", nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, "", nil
	default:
		return nil, "", fmt.Errorf("unsupported compression: %s", name)
	}
}

// StringValue formats a nullable string partition value.
func StringValue(v *string) string {
	if v == nil || *v == "" {
		return DefaultPartition
	}
	return *v
}

// Int64Value formats a nullable integer partition value.
func Int64Value(v *int64) string {
	if v == nil {
		return DefaultPartition
	}
	return strconv.FormatInt(*v, 10)
}

// IntValue formats an integer partition value.
func IntValue(v int) string {
	return strconv.Itoa(v)
}

// EscapeValue escapes characters that are not safe in a partition
// directory name.
func EscapeValue(v string) string {
	if v == "" {
		return DefaultPartition
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnescapeValue reverses EscapeValue.
func UnescapeValue(v string) string {
	if !strings.Contains(v, "%") {
		return v
	}
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '%' && i+2 < len(v) {
			if n, err := strconv.ParseUint(v[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}
