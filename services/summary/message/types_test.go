// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRange(t *testing.T) {
	tests := []struct {
		name     string
		msgs     []Message
		wantFrom string
		wantTo   string
	}{
		{
			name:     "no snapshot parts",
			msgs:     []Message{{Parts: []Part{{Type: PartText, Text: "hi"}}}},
			wantFrom: "",
			wantTo:   "",
		},
		{
			name: "earliest start and latest finish win",
			msgs: []Message{
				{Parts: []Part{{Type: PartStepStart, Snapshot: "s1"}, {Type: PartStepFinish, Snapshot: "s2"}}},
				{Parts: []Part{{Type: PartStepStart, Snapshot: "s3"}, {Type: PartStepFinish, Snapshot: "s4"}}},
			},
			wantFrom: "s1",
			wantTo:   "s4",
		},
		{
			name: "parts without snapshot refs are skipped",
			msgs: []Message{
				{Parts: []Part{{Type: PartStepStart}, {Type: PartStepStart, Snapshot: "s1"}}},
				{Parts: []Part{{Type: PartStepFinish, Snapshot: "s2"}, {Type: PartStepFinish}}},
			},
			wantFrom: "s1",
			wantTo:   "s2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := SnapshotRange(tt.msgs)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestLastUser(t *testing.T) {
	msgs := []Message{
		{ID: "u1", Role: RoleUser},
		{ID: "a1", Role: RoleAssistant, ParentID: "u1"},
		{ID: "u2", Role: RoleUser},
		{ID: "a2", Role: RoleAssistant, ParentID: "u2"},
	}

	got, ok := LastUser(msgs)
	require.True(t, ok)
	assert.Equal(t, "u2", got.ID)

	_, ok = LastUser([]Message{{Role: RoleAssistant}})
	assert.False(t, ok)
}

func TestPatchFiles_NormalizesPaths(t *testing.T) {
	msgs := []Message{
		{Parts: []Part{{Type: PartPatch, Files: []string{"./src/a.go", "src/../src/b.go"}}}},
		{Parts: []Part{{Type: PartPatch, Files: []string{"src/a.go", "."}}}},
	}

	files := PatchFiles(msgs)
	assert.Len(t, files, 2)
	assert.Contains(t, files, "src/a.go")
	assert.Contains(t, files, "src/b.go")
}

func TestMessageSlice(t *testing.T) {
	msgs := []Message{
		{ID: "u1", Role: RoleUser},
		{ID: "a1", Role: RoleAssistant, ParentID: "u1"},
		{ID: "u2", Role: RoleUser},
		{ID: "a2", Role: RoleAssistant, ParentID: "u2"},
		{ID: "a3", Role: RoleAssistant, ParentID: "u2"},
	}

	slice := MessageSlice(msgs, "u2")
	require.Len(t, slice, 3)
	assert.Equal(t, "u2", slice[0].ID)
	assert.Equal(t, "a2", slice[1].ID)
	assert.Equal(t, "a3", slice[2].ID)
}

func TestHasUserText(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{
			name: "plain user text",
			msg:  Message{Role: RoleUser, Parts: []Part{{Type: PartText, Text: "fix the bug"}}},
			want: true,
		},
		{
			name: "synthetic text is ignored",
			msg:  Message{Role: RoleUser, Parts: []Part{{Type: PartText, Text: "injected", Synthetic: true}}},
			want: false,
		},
		{
			name: "whitespace-only text is ignored",
			msg:  Message{Role: RoleUser, Parts: []Part{{Type: PartText, Text: "  \n"}}},
			want: false,
		},
		{
			name: "assistant messages never qualify",
			msg:  Message{Role: RoleAssistant, Parts: []Part{{Type: PartText, Text: "sure"}}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.HasUserText())
		})
	}
}

func TestRedactToolOutputs(t *testing.T) {
	msgs := []Message{
		{Parts: []Part{
			{Type: PartTool, ToolStatus: ToolCompleted, ToolOutput: "very long output"},
			{Type: PartTool, ToolStatus: ToolPending, ToolOutput: "partial"},
			{Type: PartText, Text: "hello"},
		}},
	}

	redacted := RedactToolOutputs(msgs)

	assert.Equal(t, redactedToolOutput, redacted[0].Parts[0].ToolOutput)
	assert.Equal(t, "partial", redacted[0].Parts[1].ToolOutput, "pending tool output is kept")
	assert.Equal(t, "hello", redacted[0].Parts[2].Text)

	// The original history must be untouched.
	assert.Equal(t, "very long output", msgs[0].Parts[0].ToolOutput)
}
