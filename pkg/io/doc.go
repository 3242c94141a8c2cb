// Package io reads and writes the packages.json dump of a vault.
//
// # Format
//
// packages.json is a JSON array of normalized packages, ordered by
// identifier, with every field present:
//
//	[
//	  {
//	    "identifier": "1a2b3c4d-hello-2.12.1",
//	    "attr_path": "hello",
//	    "name": "hello",
//	    "version": "2.12.1",
//	    "licenses": ["GPL-3.0-or-later"],
//	    "maintainers": ["eelco"],
//	    ...
//	    "dependency_refs": [{"key": "glibc", "kind": "build"}]
//	  }
//	]
//
// Dependency references are stored as written in the source, so a loaded
// dump can be linked again with [graph.FromPackages] and produces the same
// graph it was written from.
//
// # Export
//
// [WriteJSON] is byte-deterministic: the same graph always produces the same
// file. [WriteStats] writes stats.json. The pipeline hands both to its sink
// rather than writing files itself.
//
// # Import
//
// [ReadJSON] decodes and validates the array; [ImportJSON] also rebuilds the
// graph. The serve command uses these to browse an existing vault.
package io
