// Package nixpkgs models package records produced by evaluating a nixpkgs
// checkout and normalizes them into canonical [Package] values.
//
// # Overview
//
// Evaluation output is loosely typed: a license may be a string, an object or
// a list of either; maintainers may be handles or objects; outputs may be a
// map or a list. [RawRecord] keeps these fields as undecoded JSON, and
// [Normalize] is the only place that interprets them. Past the normalizer
// every value is a typed [Package] or a [MalformedRecordError] that names the
// offending field.
//
// # Input Formats
//
// [ReadRecords] accepts the object form written by
//
//	nix-env -f <nixpkgs> -qa --json --meta --drv-path --out-path
//
// where each key is an attribute path, as well as a plain JSON array of
// records. Dependency references are read from the optional "deps",
// "buildInputs", "nativeBuildInputs" and "propagatedBuildInputs" arrays.
//
// # Ordering
//
// [Compare] defines the total order used wherever a deterministic choice
// between packages is needed: name, then version, then source position, then
// attribute path and derivation path, and finally a content fingerprint.
//
// # Concurrency
//
// [Normalize] is a pure function of its input and safe to call from any
// number of goroutines. [NormalizeAll] fans records out over a bounded pool
// and returns packages in input order.
package nixpkgs
