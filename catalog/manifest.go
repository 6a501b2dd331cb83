package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load reads a JSON manifest of the form
//
//	[{"id": 0, "answer": "x7kq", "image": "captchas/0.png"}, ...]
func Load(r io.Reader, opts Options) (*Catalog, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog manifest: %w", err)
	}
	return New(entries, opts)
}

func LoadFile(path string, opts Options) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts)
}
