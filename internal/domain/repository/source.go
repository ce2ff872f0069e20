package repository

// SourceType names a backend that can supply observation series.
type SourceType string

const (
	SourceCSV        SourceType = "csv"
	SourceJSON       SourceType = "json"
	SourceSQLite     SourceType = "sqlite"
	SourceClickHouse SourceType = "clickhouse"
)

// IsValidSource returns true if st is a supported source type.
func IsValidSource(st SourceType) bool {
	switch st {
	case SourceCSV, SourceJSON, SourceSQLite, SourceClickHouse:
		return true
	default:
		return false
	}
}

// DefaultSource returns the default source type.
func DefaultSource() SourceType { return SourceCSV }

// NormalizeSource converts a raw string to a valid source type (or default).
func NormalizeSource(s string) SourceType {
	if s == "" {
		return DefaultSource()
	}
	st := SourceType(s)
	if IsValidSource(st) {
		return st
	}
	return DefaultSource()
}
