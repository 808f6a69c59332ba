// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/gateway"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
)

const (
	// generateAttempts is the total gateway attempts per title or body
	// generation: one initial call plus three retries.
	generateAttempts = 4

	// generateTimeout bounds one generation, including its retries.
	generateTimeout = 30 * time.Second

	// maxTitleLength caps generated titles after cleanup.
	maxTitleLength = 100
)

// titleAgent is the behavioral configuration for title generation.
var titleAgent = gateway.Agent{
	Name: "session-title",
	SystemPrompt: "You write titles for coding sessions. " +
		"Given the user's request, respond with a single short title " +
		"(under 10 words) describing the task. Plain text only: no " +
		"quotes, no markdown, no trailing punctuation.",
	MaxTokens:   64,
	Temperature: 0,
}

// bodyAgent is the behavioral configuration for body generation.
var bodyAgent = gateway.Agent{
	Name: "message-summary",
	SystemPrompt: "You summarize one exchange of a coding session. " +
		"Given the conversation and the files that changed, respond " +
		"with a short prose summary (2-4 sentences) of what was asked " +
		"and what was done. No markdown headings, no lists.",
	MaxTokens:   512,
	Temperature: 0,
}

// cleanTitle normalizes model output into a single display line.
func cleanTitle(text string) string {
	title := strings.TrimSpace(text)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(strings.TrimSpace(title), "\"'`")
	title = strings.TrimSpace(strings.TrimRight(title, "."))
	if len(title) > maxTitleLength {
		title = strings.TrimSpace(title[:maxTitleLength])
	}
	return title
}

// buildBodyMessages replays a redacted message slice as conversation
// turns for the body generation prompt.
func buildBodyMessages(msgs []message.Message) []gateway.Message {
	out := make([]gateway.Message, 0, len(msgs))
	for _, m := range msgs {
		content := renderMessage(m)
		if content == "" {
			continue
		}
		role := "user"
		if m.Role == message.RoleAssistant {
			role = "assistant"
		}
		out = append(out, gateway.Message{Role: role, Content: content})
	}
	return out
}

// renderMessage flattens one message's parts into prompt text.
func renderMessage(m message.Message) string {
	var sb strings.Builder
	for _, p := range m.Parts {
		switch p.Type {
		case message.PartText:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(p.Text)
		case message.PartTool:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "[tool %s: %s]", p.ToolName, p.ToolOutput)
		case message.PartPatch:
			if len(p.Files) == 0 {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "[changed files: %s]", strings.Join(p.Files, ", "))
		}
	}
	return sb.String()
}
