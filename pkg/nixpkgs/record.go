package nixpkgs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
)

// RawRecord is one package record as produced by the evaluator. Fields whose
// shape varies across nixpkgs are kept as raw JSON for [Normalize].
type RawRecord struct {
	AttrPath string          `json:"attrPath,omitempty"`
	Name     string          `json:"name"`
	PName    string          `json:"pname,omitempty"`
	Version  string          `json:"version,omitempty"`
	System   string          `json:"system,omitempty"`
	DrvPath  string          `json:"drvPath,omitempty"`
	Outputs  json.RawMessage `json:"outputs,omitempty"`
	Meta     RawMeta         `json:"meta"`

	Deps                  json.RawMessage `json:"deps,omitempty"`
	BuildInputs           json.RawMessage `json:"buildInputs,omitempty"`
	NativeBuildInputs     json.RawMessage `json:"nativeBuildInputs,omitempty"`
	PropagatedBuildInputs json.RawMessage `json:"propagatedBuildInputs,omitempty"`
}

// RawMeta is the meta attribute set of a raw record.
type RawMeta struct {
	Description     json.RawMessage `json:"description,omitempty"`
	LongDescription json.RawMessage `json:"longDescription,omitempty"`
	License         json.RawMessage `json:"license,omitempty"`
	Maintainers     json.RawMessage `json:"maintainers,omitempty"`
	Homepage        json.RawMessage `json:"homepage,omitempty"`
	Position        json.RawMessage `json:"position,omitempty"`
}

// ReadRecords decodes evaluator output from r.
//
// The input is either a JSON object keyed by attribute path (the nix-env
// format, returned sorted by attribute path) or a JSON array of records.
// Entries that are not decodable as a record are returned as malformed and
// skipped. An empty, null or undecodable document, or one with no entries,
// is an ingestion failure.
func ReadRecords(r io.Reader) ([]RawRecord, []*MalformedRecordError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeIngestion, err, "read package records")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, errors.New(errors.ErrCodeIngestion, "no package records in input")
	}

	type entry struct {
		key string
		raw json.RawMessage
	}
	var entries []entry

	switch data[0] {
	case '{':
		var byAttr map[string]json.RawMessage
		if err := json.Unmarshal(data, &byAttr); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeIngestion, err, "decode package records")
		}
		for _, k := range slices.Sorted(maps.Keys(byAttr)) {
			entries = append(entries, entry{key: k, raw: byAttr[k]})
		}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeIngestion, err, "decode package records")
		}
		for _, raw := range list {
			entries = append(entries, entry{raw: raw})
		}
	default:
		return nil, nil, errors.New(errors.ErrCodeIngestion, "package records must be a JSON object or array")
	}

	if len(entries) == 0 {
		return nil, nil, errors.New(errors.ErrCodeIngestion, "no package records in input")
	}

	records := make([]RawRecord, 0, len(entries))
	var malformed []*MalformedRecordError
	for i, e := range entries {
		var rec RawRecord
		if err := json.Unmarshal(e.raw, &rec); err != nil {
			malformed = append(malformed, &MalformedRecordError{
				Index:  i,
				Key:    e.key,
				Field:  "record",
				Reason: "not a package record",
				Err:    err,
			})
			continue
		}
		if rec.AttrPath == "" {
			rec.AttrPath = e.key
		}
		records = append(records, rec)
	}
	return records, malformed, nil
}

// ReadRecordsFile reads evaluator output from the file at path.
func ReadRecordsFile(path string) ([]RawRecord, []*MalformedRecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeIngestion, err, "open %s", path)
	}
	defer f.Close()

	records, malformed, err := ReadRecords(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, malformed, nil
}
