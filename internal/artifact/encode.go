package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func encodeJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// encodeJSONL writes one compact JSON value per line.
func encodeJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

type file struct {
	name        string
	contentType string
	encode      func() ([]byte, error)
}

func jsonFile(name string, v any) file {
	return file{name: name, contentType: contentJSON, encode: func() ([]byte, error) { return encodeJSON(v) }}
}

func jsonlFile[T any](name string, rows []T) file {
	return file{name: name, contentType: contentJSONL, encode: func() ([]byte, error) { return encodeJSONL(rows) }}
}
