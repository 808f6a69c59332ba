// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package diff defines the per-file diff model used by the session
// summarization pipeline.
//
// # Description
//
// A FileDiff captures one file's change between two working-tree
// snapshots. Diff sets are produced by an external snapshot provider
// and may carry loosely-typed numeric fields (NaN, infinities); the
// New constructor normalizes those once at the boundary so the rest
// of the pipeline only ever sees well-formed counts.
//
// # Thread Safety
//
// FileDiff values are plain data and safe to share after creation.
package diff

import (
	"math"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// Change Kind
// =============================================================================

// ChangeKind categorizes how a file changed between two snapshots.
type ChangeKind string

const (
	// KindAdded means the file did not exist at the "from" snapshot.
	KindAdded ChangeKind = "added"

	// KindDeleted means the file no longer exists at the "to" snapshot.
	KindDeleted ChangeKind = "deleted"

	// KindModified means the file exists at both snapshots with changes.
	KindModified ChangeKind = "modified"

	// KindBinary means neither snapshot carries text content for the file.
	KindBinary ChangeKind = "binary"
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	return string(k)
}

// =============================================================================
// File Diff
// =============================================================================

// FileDiff represents one file's change in a snapshot-to-snapshot
// comparison.
//
// # Description
//
// File paths are relative to the working tree and unique within a diff
// set. Empty Before or After content signals that the file did not
// exist at that snapshot point.
type FileDiff struct {
	// File is the path relative to the working tree.
	File string `json:"file"`

	// Additions is the number of added lines. Never negative.
	Additions int `json:"additions"`

	// Deletions is the number of removed lines. Never negative.
	Deletions int `json:"deletions"`

	// Before is the full file content at the "from" snapshot.
	// Empty means the file did not exist there.
	Before string `json:"before"`

	// After is the full file content at the "to" snapshot.
	// Empty means the file no longer exists.
	After string `json:"after"`
}

// New constructs a FileDiff, normalizing loose numeric input.
//
// Description:
//
//	Snapshot providers hand back addition/deletion counts that may be
//	non-finite or negative. Those are coerced to zero here so every
//	downstream consumer can rely on well-formed counts.
//
// Inputs:
//
//	file - Relative path of the changed file.
//	additions, deletions - Raw line counts from the provider.
//	before, after - Full file contents at the two snapshot points.
//
// Outputs:
//
//	FileDiff - The normalized diff.
func New(file string, additions, deletions float64, before, after string) FileDiff {
	return FileDiff{
		File:      file,
		Additions: normalizeCount(additions),
		Deletions: normalizeCount(deletions),
		Before:    before,
		After:     after,
	}
}

// normalizeCount coerces non-finite or negative counts to zero and
// clamps values beyond the int range, where the conversion would
// otherwise be implementation-defined.
func normalizeCount(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(v)
}

// Kind classifies the change represented by this diff.
//
// Both sides empty is classified as binary before the added/deleted
// checks, since an empty before-content would otherwise shadow it.
func (d FileDiff) Kind() ChangeKind {
	switch {
	case d.Before == "" && d.After == "":
		return KindBinary
	case d.Before == "":
		return KindAdded
	case d.After == "":
		return KindDeleted
	default:
		return KindModified
	}
}

// Extension returns the file extension without the leading dot,
// or an empty string if the file has none.
func (d FileDiff) Extension() string {
	return strings.TrimPrefix(filepath.Ext(d.File), ".")
}

// =============================================================================
// Diff Sets
// =============================================================================

// Paths returns the set of file paths in a diff set.
func Paths(diffs []FileDiff) map[string]struct{} {
	paths := make(map[string]struct{}, len(diffs))
	for _, d := range diffs {
		paths[d.File] = struct{}{}
	}
	return paths
}

// Totals returns the aggregate additions, deletions, and file count
// for a diff set.
func Totals(diffs []FileDiff) (additions, deletions, files int) {
	for _, d := range diffs {
		additions += d.Additions
		deletions += d.Deletions
	}
	return additions, deletions, len(diffs)
}

// =============================================================================
// Content Signatures
// =============================================================================

// Signature is the content-identity of a single diff used for cache-hit
// checks. It intentionally ignores the diff's position within the set.
type Signature struct {
	File      string
	Additions int
	Deletions int
	BeforeLen int
	AfterLen  int
}

// Signatures derives the order-independent signature list of a diff set.
//
// Description:
//
//	The result is sorted by file path so two diff sets can be compared
//	with a structured element-wise equality check rather than a
//	concatenated-string heuristic, which would admit collisions at
//	ambiguous field boundaries.
//
// Inputs:
//
//	diffs - The diff set.
//
// Outputs:
//
//	[]Signature - Sorted signatures, one per diff.
func Signatures(diffs []FileDiff) []Signature {
	sigs := make([]Signature, len(diffs))
	for i, d := range diffs {
		sigs[i] = Signature{
			File:      d.File,
			Additions: d.Additions,
			Deletions: d.Deletions,
			BeforeLen: len(d.Before),
			AfterLen:  len(d.After),
		}
	}
	sort.Slice(sigs, func(i, j int) bool {
		return sigs[i].File < sigs[j].File
	})
	return sigs
}

// SignaturesEqual reports whether two diff sets carry identical content
// signatures, regardless of ordering.
func SignaturesEqual(a, b []FileDiff) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := Signatures(a), Signatures(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
