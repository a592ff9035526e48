package snowflake

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"strings"

	"accessetl/internal/storage"
)

// encodeCSVGzip renders rows as gzip-compressed CSV held in memory.
//
// SQL NULL is an empty unquoted field; every other value is enclosed in
// double quotes, so empty strings and text such as `\N` survive COPY with
// EMPTY_FIELD_AS_NULL=TRUE and no NULL_IF markers.
func encodeCSVGzip(rows [][]any) (*bytes.Reader, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	w := bufio.NewWriter(zw)

	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				w.WriteByte(',')
			}
			if v == nil {
				continue
			}
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(storage.TextValue(v), `"`, `""`))
			w.WriteByte('"')
		}
		if _, err := w.WriteString("\n"); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}
