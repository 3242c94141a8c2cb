package nixpkgs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
)

// DefaultOutput is the output every derivation has when the record does not
// list any.
const DefaultOutput = "out"

// MalformedRecordError reports a raw record that failed normalization. The
// record is skipped; the run continues.
type MalformedRecordError struct {
	Index    int    // position of the record in the input
	Key      string // attribute path, if known
	Name     string // raw name, if known
	Position string // raw source position, if known
	Field    string // field that failed validation
	Reason   string
	Err      error // decode error, if any
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "malformed record #%d", e.Index)
	if label := e.label(); label != "" {
		fmt.Fprintf(&b, " (%s)", label)
	}
	fmt.Fprintf(&b, ": field %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes the error as an [errors.ErrCodeMalformedRecord] error.
func (e *MalformedRecordError) Unwrap() error {
	return errors.Wrap(errors.ErrCodeMalformedRecord, e.Err, "field %s: %s", e.Field, e.Reason)
}

func (e *MalformedRecordError) label() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{e.Key, e.Name} {
		if s != "" && !slices.Contains(parts, s) {
			parts = append(parts, s)
		}
	}
	if e.Position != "" {
		parts = append(parts, "at "+e.Position)
	}
	return strings.Join(parts, " ")
}

// storePrefix matches the store path nix prepends to positions inside a
// fetched source tree.
var storePrefix = regexp.MustCompile(`^/nix/store/[0-9a-z]{32}-[^/]+/`)

// Normalize converts one raw record into a [Package]. index is the record's
// position in the input and is only used for error reporting.
//
// The only required field is the name ("pname", falling back to "name").
// Missing optional fields take documented defaults: empty strings, empty
// lists, and a single "out" output.
func Normalize(rec RawRecord, index int) (Package, error) {
	fail := func(field, reason string, err error) (Package, error) {
		return Package{}, &MalformedRecordError{
			Index:    index,
			Key:      rec.AttrPath,
			Name:     cmpOr(rec.PName, rec.Name),
			Position: rawString(rec.Meta.Position),
			Field:    field,
			Reason:   reason,
			Err:      err,
		}
	}

	name := strings.TrimSpace(cmpOr(rec.PName, rec.Name))
	if name == "" {
		return fail("name", "required field is empty", nil)
	}

	pkg := Package{
		AttrPath: rec.AttrPath,
		Name:     name,
		Version:  strings.TrimSpace(rec.Version),
		DrvPath:  rec.DrvPath,
	}

	var err error
	if pkg.ShortDescription, err = decodeText(rec.Meta.Description); err != nil {
		return fail("meta.description", "expected a string", err)
	}
	if pkg.LongDescription, err = decodeText(rec.Meta.LongDescription); err != nil {
		return fail("meta.longDescription", "expected a string", err)
	}
	if pkg.Licenses, err = decodeLicenses(rec.Meta.License); err != nil {
		return fail("meta.license", "expected a license or list of licenses", err)
	}
	if pkg.Maintainers, err = decodeMaintainers(rec.Meta.Maintainers); err != nil {
		return fail("meta.maintainers", "expected a list of maintainers", err)
	}
	if pkg.Homepages, err = decodeStrings(rec.Meta.Homepage, true); err != nil {
		return fail("meta.homepage", "expected a URL or list of URLs", err)
	}
	if pkg.Outputs, err = decodeOutputs(rec.Outputs); err != nil {
		return fail("outputs", "expected an output map or list", err)
	}
	if pkg.Position, err = decodePosition(rec.Meta.Position); err != nil {
		return fail("meta.position", "expected \"file:line\"", err)
	}

	pkg.DependencyRefs = []DependencyRef{}
	for _, src := range []struct {
		field string
		raw   json.RawMessage
		kind  DependencyKind
	}{
		{"deps", rec.Deps, KindGeneric},
		{"buildInputs", rec.BuildInputs, KindBuild},
		{"nativeBuildInputs", rec.NativeBuildInputs, KindNative},
		{"propagatedBuildInputs", rec.PropagatedBuildInputs, KindPropagated},
	} {
		keys, err := decodeStrings(src.raw, false)
		if err != nil {
			return fail(src.field, "expected a list of dependency names", err)
		}
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				pkg.DependencyRefs = append(pkg.DependencyRefs, DependencyRef{Key: k, Kind: src.kind})
			}
		}
	}

	return pkg, nil
}

// NormalizeAll normalizes records across at most workers goroutines (0 means
// one per available CPU). Packages are returned in input order; malformed
// records are returned separately, also in input order.
func NormalizeAll(ctx context.Context, recs []RawRecord, workers int) ([]Package, []*MalformedRecordError, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pkgs := make([]Package, len(recs))
	errs := make([]error, len(recs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := max(1, (len(recs)+workers-1)/workers)
	for start := 0; start < len(recs); start += chunk {
		end := min(start+chunk, len(recs))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				pkgs[i], errs[i] = Normalize(recs[i], i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]Package, 0, len(recs))
	var malformed []*MalformedRecordError
	for i, err := range errs {
		if err == nil {
			out = append(out, pkgs[i])
			continue
		}
		var me *MalformedRecordError
		if !asMalformed(err, &me) {
			me = &MalformedRecordError{Index: i, Key: recs[i].AttrPath, Field: "record", Reason: "normalization failed", Err: err}
		}
		malformed = append(malformed, me)
	}
	return out, malformed, nil
}

func asMalformed(err error, target **MalformedRecordError) bool {
	me, ok := err.(*MalformedRecordError)
	if ok {
		*target = me
	}
	return ok
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// rawString returns raw as a string if it is a JSON string, for error labels.
func rawString(raw json.RawMessage) string {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeText(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// decodeStrings accepts a list of strings, or a single string when single is
// set. The result is never nil.
func decodeStrings(raw json.RawMessage, single bool) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	if single {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s == "" {
				return []string{}, nil
			}
			return []string{s}, nil
		}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

type rawLicense struct {
	SPDXID    string `json:"spdxId"`
	ShortName string `json:"shortName"`
	FullName  string `json:"fullName"`
}

func (l rawLicense) token() string {
	return strings.TrimSpace(cmpOr(l.SPDXID, cmpOr(l.ShortName, l.FullName)))
}

// decodeLicenses returns the sorted, deduplicated set of license tokens.
func decodeLicenses(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}

	var elems []json.RawMessage
	if bytes.TrimSpace(raw)[0] == '[' {
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
	} else {
		elems = []json.RawMessage{raw}
	}

	set := make(map[string]struct{}, len(elems))
	for _, el := range elems {
		tok, err := decodeLicense(el)
		if err != nil {
			return nil, err
		}
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set)), nil
}

func decodeLicense(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s), nil
	}
	var l rawLicense
	if err := json.Unmarshal(raw, &l); err != nil {
		return "", err
	}
	return l.token(), nil
}

type rawMaintainer struct {
	GitHub string `json:"github"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// decodeMaintainers keeps source order and drops repeated handles.
func decodeMaintainers(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(elems))
	seen := make(map[string]bool, len(elems))
	for _, el := range elems {
		var handle string
		if json.Unmarshal(el, &handle) != nil {
			var m rawMaintainer
			if err := json.Unmarshal(el, &m); err != nil {
				return nil, err
			}
			handle = cmpOr(m.GitHub, cmpOr(m.Name, m.Email))
		}
		handle = strings.TrimSpace(handle)
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true
		out = append(out, handle)
	}
	return out, nil
}

// decodeOutputs accepts {"out": "/nix/store/...", ...} or ["out", ...].
func decodeOutputs(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{DefaultOutput}, nil
	}

	var names []string
	var byName map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byName); err == nil {
		names = slices.Collect(maps.Keys(byName))
	} else if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	if len(set) == 0 {
		return []string{DefaultOutput}, nil
	}
	return slices.Sorted(maps.Keys(set)), nil
}

func decodePosition(raw json.RawMessage) (*Position, error) {
	s, err := decodeText(raw)
	if err != nil || s == "" {
		return nil, err
	}
	s = storePrefix.ReplaceAllString(s, "")

	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return &Position{File: s}, nil
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 0 {
		return nil, fmt.Errorf("invalid line in %q", s)
	}
	return &Position{File: s[:i], Line: line}, nil
}
