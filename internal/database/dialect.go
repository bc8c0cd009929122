package database

import (
	"strconv"
	"strings"
)

// Dialect captures the engine differences the query and schema layers
// care about: placeholders, RETURNING support and column types.
type Dialect struct {
	Name      string
	Numbered  bool
	Returning bool
	types     map[string]string
}

var (
	Postgres = Dialect{
		Name:      "postgres",
		Numbered:  true,
		Returning: true,
		types: map[string]string{
			"id":     "BIGSERIAL PRIMARY KEY",
			"bigint": "BIGINT",
			"int":    "INTEGER",
			"bool":   "BOOLEAN",
			"true":   "TRUE",
			"false":  "FALSE",
			"money":  "NUMERIC(12, 2)",
			"zero":   "0",
			"key":    "TEXT",
			"text":   "TEXT",
			"ts":     "TEXT",
		},
	}
	MySQL = Dialect{
		Name: "mysql",
		types: map[string]string{
			"id":     "BIGINT AUTO_INCREMENT PRIMARY KEY",
			"bigint": "BIGINT",
			"int":    "INT",
			"bool":   "BOOLEAN",
			"true":   "TRUE",
			"false":  "FALSE",
			"money":  "DECIMAL(12, 2)",
			"zero":   "0",
			"key":    "VARCHAR(191)",
			"text":   "TEXT",
			"ts":     "VARCHAR(40)",
		},
	}
	// SQLite keeps money as TEXT so decimals round-trip exactly.
	SQLite = Dialect{
		Name: "sqlite",
		types: map[string]string{
			"id":     "INTEGER PRIMARY KEY AUTOINCREMENT",
			"bigint": "INTEGER",
			"int":    "INTEGER",
			"bool":   "INTEGER",
			"true":   "1",
			"false":  "0",
			"money":  "TEXT",
			"zero":   "'0'",
			"key":    "TEXT",
			"text":   "TEXT",
			"ts":     "TEXT",
		},
	}
)

// Expand replaces {{type}} tokens in a DDL template with this dialect's
// column types.
func (d Dialect) Expand(ddl string) string {
	pairs := make([]string, 0, len(d.types)*2)
	for token, sqlType := range d.types {
		pairs = append(pairs, "{{"+token+"}}", sqlType)
	}
	return strings.NewReplacer(pairs...).Replace(ddl)
}

// Rebind rewrites '?' placeholders as $1, $2, ... for numbered dialects.
// Question marks inside quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
