// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package message models the conversation history consumed by the
// summarization pipeline.
//
// # Description
//
// Messages are produced by the surrounding conversation-processing
// layer. Each message carries typed parts: text, tool activity,
// step boundaries with snapshot references, and patch parts naming
// the files an assistant turn touched. The helpers in this package
// scan ordered histories for the structures the summarizer needs
// (snapshot ranges, patch file sets, the most recent user turn).
//
// # Thread Safety
//
// Message values are treated as immutable snapshots by the pipeline;
// mutating helpers operate on copies.
package message

import (
	"path/filepath"
	"strings"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
)

// =============================================================================
// Roles and Finish Reasons
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a human-authored message.
	RoleUser Role = "user"

	// RoleAssistant marks a model-authored message.
	RoleAssistant Role = "assistant"
)

// FinishReason records why an assistant response stopped generating.
type FinishReason string

const (
	// FinishToolCalls is the ordinary stop after emitting tool calls.
	FinishToolCalls FinishReason = "tool-calls"

	// FinishStop is a natural end-of-turn stop.
	FinishStop FinishReason = "stop"

	// FinishLength is a token-budget cutoff.
	FinishLength FinishReason = "length"
)

// =============================================================================
// Parts
// =============================================================================

// PartType identifies the kind of a message part.
type PartType string

const (
	// PartText is plain conversational text.
	PartText PartType = "text"

	// PartTool records a tool invocation and its output.
	PartTool PartType = "tool"

	// PartStepStart marks the beginning of an agent step; it may carry
	// a snapshot reference for the working tree at that point.
	PartStepStart PartType = "step-start"

	// PartStepFinish marks the end of an agent step; it may carry a
	// snapshot reference for the working tree after the step.
	PartStepFinish PartType = "step-finish"

	// PartPatch names the files an assistant turn modified.
	PartPatch PartType = "patch"
)

// ToolStatus tracks the lifecycle of a tool part.
type ToolStatus string

const (
	// ToolCompleted means the tool ran and produced output.
	ToolCompleted ToolStatus = "completed"

	// ToolErrored means the tool failed.
	ToolErrored ToolStatus = "error"

	// ToolPending means the tool has not finished.
	ToolPending ToolStatus = "pending"
)

// Part is one typed segment of a message.
type Part struct {
	// Type discriminates which of the remaining fields are meaningful.
	Type PartType `json:"type"`

	// Text is the content of text parts.
	Text string `json:"text,omitempty"`

	// Synthetic marks text injected by the system rather than typed
	// by the user. Synthetic text never drives title generation.
	Synthetic bool `json:"synthetic,omitempty"`

	// Snapshot is the content-addressed working-tree reference carried
	// by step-start and step-finish parts. Empty when absent.
	Snapshot string `json:"snapshot,omitempty"`

	// Files lists the paths a patch part touched.
	Files []string `json:"files,omitempty"`

	// ToolName identifies the tool for tool parts.
	ToolName string `json:"tool_name,omitempty"`

	// ToolStatus is the tool part's lifecycle state.
	ToolStatus ToolStatus `json:"tool_status,omitempty"`

	// ToolOutput is the tool part's captured output.
	ToolOutput string `json:"tool_output,omitempty"`
}

// =============================================================================
// Message
// =============================================================================

// Summary is the per-message summarization record maintained by the
// message-level sub-task.
type Summary struct {
	// Title is a short human-readable label for the exchange.
	Title string `json:"title,omitempty"`

	// Body is a prose summary of what the exchange accomplished.
	Body string `json:"body,omitempty"`

	// Diffs is the diff set computed for this message pair.
	Diffs []diff.FileDiff `json:"diffs,omitempty"`

	// Additions, Deletions, and Files aggregate Diffs.
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// Message is one turn of a session's conversation history.
type Message struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`

	// SessionID identifies the owning session.
	SessionID string `json:"session_id"`

	// ParentID links an assistant response to the user message it
	// answers. Empty for user messages.
	ParentID string `json:"parent_id,omitempty"`

	// Role is the message author.
	Role Role `json:"role"`

	// ProviderID and ModelID identify the model that produced an
	// assistant message. Empty for user messages.
	ProviderID string `json:"provider_id,omitempty"`
	ModelID    string `json:"model_id,omitempty"`

	// FinishReason records why an assistant response stopped.
	FinishReason FinishReason `json:"finish_reason,omitempty"`

	// Parts holds the message content in order.
	Parts []Part `json:"parts"`

	// Summary is the message-level summarization record, if computed.
	Summary *Summary `json:"summary,omitempty"`
}

// HasUserText reports whether the message carries at least one
// non-synthetic text part authored by the user.
func (m Message) HasUserText() bool {
	if m.Role != RoleUser {
		return false
	}
	for _, p := range m.Parts {
		if p.Type == PartText && !p.Synthetic && strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// =============================================================================
// History Scanning
// =============================================================================

// LastUser returns the most recent user-authored message, or false if
// the history contains none.
func LastUser(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// LastAssistant returns the most recent assistant-authored message, or
// false if the history contains none.
func LastAssistant(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// SnapshotRange extracts the snapshot pair bounding a history slice.
//
// Description:
//
//	The "from" point is the earliest step-start part carrying a
//	snapshot reference; the "to" point is the latest step-finish part
//	carrying one. Either may be empty when the history holds no such
//	part, in which case the caller treats the diff set as empty.
//
// Inputs:
//
//	msgs - Ordered message history.
//
// Outputs:
//
//	from, to - Snapshot references; empty when missing.
func SnapshotRange(msgs []Message) (from, to string) {
	for _, m := range msgs {
		for _, p := range m.Parts {
			switch p.Type {
			case PartStepStart:
				if from == "" && p.Snapshot != "" {
					from = p.Snapshot
				}
			case PartStepFinish:
				if p.Snapshot != "" {
					to = p.Snapshot
				}
			}
		}
	}
	return from, to
}

// PatchFiles collects the set of files named by patch parts across a
// history slice, normalized to clean slash-separated relative paths.
func PatchFiles(msgs []Message) map[string]struct{} {
	files := make(map[string]struct{})
	for _, m := range msgs {
		for _, p := range m.Parts {
			if p.Type != PartPatch {
				continue
			}
			for _, f := range p.Files {
				clean := filepath.ToSlash(filepath.Clean(f))
				clean = strings.TrimPrefix(clean, "./")
				if clean != "" && clean != "." {
					files[clean] = struct{}{}
				}
			}
		}
	}
	return files
}

// MessageSlice filters a history down to the target message and any
// assistant message whose parent is that message, preserving order.
func MessageSlice(msgs []Message, messageID string) []Message {
	var slice []Message
	for _, m := range msgs {
		if m.ID == messageID || (m.Role == RoleAssistant && m.ParentID == messageID) {
			slice = append(slice, m)
		}
	}
	return slice
}

// redactedToolOutput replaces completed tool outputs before the
// conversation is replayed into a summarization prompt.
const redactedToolOutput = "[output pruned]"

// RedactToolOutputs returns a deep-enough copy of the history with
// completed tool outputs replaced by a placeholder, keeping the
// summarization prompt small. The input is not modified.
func RedactToolOutputs(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		out[i].Parts = make([]Part, len(m.Parts))
		copy(out[i].Parts, m.Parts)
		for j := range out[i].Parts {
			p := &out[i].Parts[j]
			if p.Type == PartTool && p.ToolStatus == ToolCompleted && p.ToolOutput != "" {
				p.ToolOutput = redactedToolOutput
			}
		}
	}
	return out
}
