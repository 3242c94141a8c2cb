package nixpkgs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
)

func decodeRecord(t *testing.T, s string) RawRecord {
	t.Helper()
	var rec RawRecord
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func TestNormalizeFullRecord(t *testing.T) {
	rec := decodeRecord(t, `{
		"attrPath": "hello",
		"name": "hello-2.12.1",
		"pname": "hello",
		"version": "2.12.1",
		"drvPath": "/nix/store/aaaa-hello-2.12.1.drv",
		"outputs": {"out": "/nix/store/bbbb-hello-2.12.1", "man": null},
		"meta": {
			"description": " A program that produces a familiar, friendly greeting ",
			"longDescription": "GNU Hello is a program...",
			"license": [{"spdxId": "GPL-3.0-or-later", "shortName": "gpl3Plus"}, "MIT", {"fullName": "Custom"}],
			"maintainers": [{"github": "eelco", "name": "Eelco"}, "alice", {"name": "Bob"}, {"github": "eelco"}],
			"homepage": "https://www.gnu.org/software/hello/",
			"position": "/nix/store/0123456789abcdfghijklmnpqrsvwxyz-source/pkgs/by-name/he/hello/package.nix:34"
		},
		"buildInputs": ["gettext"],
		"deps": ["glibc"],
		"nativeBuildInputs": ["autoconf", "autoconf"],
		"propagatedBuildInputs": ["libiconv"]
	}`)

	pkg, err := Normalize(rec, 0)
	require.NoError(t, err)

	assert.Equal(t, "hello", pkg.Name)
	assert.Equal(t, "2.12.1", pkg.Version)
	assert.Equal(t, "hello", pkg.AttrPath)
	assert.Equal(t, "A program that produces a familiar, friendly greeting", pkg.ShortDescription)
	assert.Equal(t, []string{"Custom", "GPL-3.0-or-later", "MIT"}, pkg.Licenses)
	assert.Equal(t, []string{"eelco", "alice", "Bob"}, pkg.Maintainers)
	assert.Equal(t, []string{"https://www.gnu.org/software/hello/"}, pkg.Homepages)
	assert.Equal(t, []string{"man", "out"}, pkg.Outputs)
	assert.Equal(t, &Position{File: "pkgs/by-name/he/hello/package.nix", Line: 34}, pkg.Position)
	assert.Equal(t, []DependencyRef{
		{Key: "glibc", Kind: KindGeneric},
		{Key: "gettext", Kind: KindBuild},
		{Key: "autoconf", Kind: KindNative},
		{Key: "autoconf", Kind: KindNative},
		{Key: "libiconv", Kind: KindPropagated},
	}, pkg.DependencyRefs)
	assert.Empty(t, pkg.Identifier)
}

func TestNormalizeDefaults(t *testing.T) {
	pkg, err := Normalize(RawRecord{Name: "a"}, 0)
	require.NoError(t, err)

	assert.Equal(t, "a", pkg.Name)
	assert.Equal(t, "", pkg.Version)
	assert.Equal(t, "", pkg.ShortDescription)
	assert.Equal(t, []string{}, pkg.Licenses)
	assert.Equal(t, []string{}, pkg.Maintainers)
	assert.Equal(t, []string{}, pkg.Homepages)
	assert.Equal(t, []string{DefaultOutput}, pkg.Outputs)
	assert.Equal(t, []DependencyRef{}, pkg.DependencyRefs)
	assert.Nil(t, pkg.Position)

	data, err := json.Marshal(pkg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"licenses":[]`)
	assert.Contains(t, string(data), `"position":null`)
}

func TestNormalizeLicenseShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"string", `"mit"`, []string{"mit"}},
		{"object spdx", `{"spdxId": "MIT", "shortName": "mit"}`, []string{"MIT"}},
		{"object short name only", `{"shortName": "unfree"}`, []string{"unfree"}},
		{"list dedup", `["MIT", {"spdxId": "MIT"}]`, []string{"MIT"}},
		{"null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := RawRecord{Name: "x", Meta: RawMeta{License: json.RawMessage(tt.raw)}}
			pkg, err := Normalize(rec, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pkg.Licenses)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name      string
		rec       RawRecord
		wantField string
	}{
		{"missing name", RawRecord{Version: "1"}, "name"},
		{"blank name", RawRecord{Name: "   "}, "name"},
		{"description not string", RawRecord{Name: "x", Meta: RawMeta{Description: json.RawMessage(`42`)}}, "meta.description"},
		{"license number", RawRecord{Name: "x", Meta: RawMeta{License: json.RawMessage(`7`)}}, "meta.license"},
		{"maintainers object", RawRecord{Name: "x", Meta: RawMeta{Maintainers: json.RawMessage(`{"a": 1}`)}}, "meta.maintainers"},
		{"position bad line", RawRecord{Name: "x", Meta: RawMeta{Position: json.RawMessage(`"pkgs/x.nix:abc"`)}}, "meta.position"},
		{"outputs number", RawRecord{Name: "x", Outputs: json.RawMessage(`3`)}, "outputs"},
		{"deps not list", RawRecord{Name: "x", Deps: json.RawMessage(`"b"`)}, "deps"},
		{"build inputs objects", RawRecord{Name: "x", BuildInputs: json.RawMessage(`[{}]`)}, "buildInputs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.rec, 5)
			require.Error(t, err)

			var me *MalformedRecordError
			require.True(t, stderrors.As(err, &me))
			assert.Equal(t, tt.wantField, me.Field)
			assert.Equal(t, 5, me.Index)
			assert.True(t, errors.Is(err, errors.ErrCodeMalformedRecord))
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestMalformedRecordErrorLabel(t *testing.T) {
	rec := RawRecord{
		AttrPath: "python3Packages.foo",
		Meta:     RawMeta{Position: json.RawMessage(`"pkgs/foo.nix:1"`)},
	}
	_, err := Normalize(rec, 2)
	require.Error(t, err)
	assert.Equal(t, "malformed record #2 (python3Packages.foo at pkgs/foo.nix:1): field name: required field is empty", err.Error())
}

func TestNormalizePositionWithoutLine(t *testing.T) {
	rec := RawRecord{Name: "x", Meta: RawMeta{Position: json.RawMessage(`"pkgs/top-level/all-packages.nix"`)}}
	pkg, err := Normalize(rec, 0)
	require.NoError(t, err)
	assert.Equal(t, "pkgs/top-level/all-packages.nix", pkg.Position.String())
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	var recs []RawRecord
	for i := range 100 {
		name := "pkg" + strings.Repeat("x", i%7)
		if i%10 == 3 {
			name = ""
		}
		recs = append(recs, RawRecord{Name: name, Version: string(rune('a' + i%26))})
	}

	for _, workers := range []int{0, 1, 3, 16, 200} {
		pkgs, malformed, err := NormalizeAll(context.Background(), recs, workers)
		require.NoError(t, err)
		assert.Len(t, pkgs, 90)
		require.Len(t, malformed, 10)
		for i, me := range malformed {
			assert.Equal(t, i*10+3, me.Index)
		}

		j := 0
		for i, rec := range recs {
			if rec.Name == "" {
				continue
			}
			assert.Equal(t, rec.Name, pkgs[j].Name, "record %d", i)
			assert.Equal(t, rec.Version, pkgs[j].Version, "record %d", i)
			j++
		}
	}
}

func TestNormalizeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NormalizeAll(ctx, []RawRecord{{Name: "a"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
