// Copyright (C) 2026 VaultAI (engineering@vaultai.eu)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the summarization pipeline over HTTP for the
// summaryd daemon.
//
// # Description
//
// The conversation layer syncs session histories and snapshot diff
// sets in, triggers summarization after each completed assistant
// turn, and reads orderings and summary records back out. The
// pipeline itself stays transport-agnostic; this package only
// translates requests.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	PUT  /v1/sessions/:sessionId/messages
//	PUT  /v1/snapshots/:from/:to
//	POST /v1/summarize
//	GET  /v1/sessions/:sessionId/diffs
//	GET  /v1/sessions/:sessionId/summary
//	GET  /v1/messages/:messageId/summary
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VaultAI-EU/vault-code-cli/services/summary/diff"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/message"
	"github.com/VaultAI-EU/vault-code-cli/services/summary/summarizer"
)

// Server translates HTTP requests into pipeline calls.
type Server struct {
	summarizer *summarizer.Summarizer
	history    *StoreHistory
	snapshots  *StoreSnapshots
	logger     *slog.Logger
}

// NewServer creates a Server.
//
// Inputs:
//
//	s - The summarization pipeline. Must not be nil.
//	history - The store-backed history provider wired into s.
//	snapshots - The store-backed snapshot provider wired into s.
//	logger - Structured logger. Must not be nil.
func NewServer(s *summarizer.Summarizer, history *StoreHistory, snapshots *StoreSnapshots, logger *slog.Logger) *Server {
	return &Server{
		summarizer: s,
		history:    history,
		snapshots:  snapshots,
		logger:     logger.With(slog.String("subsystem", "api")),
	}
}

// Router builds the gin engine with all routes registered. Metrics are
// served from the given gatherer so the daemon controls its registry.
func (s *Server) Router(gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.PUT("/sessions/:sessionId/messages", s.putMessages)
		v1.PUT("/snapshots/:from/:to", s.putSnapshotDiff)
		v1.POST("/summarize", s.summarize)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:sessionId/diffs", s.getDiffs)
			sessions.GET("/:sessionId/summary", s.getSession)
		}
		v1.GET("/messages/:messageId/summary", s.getMessageSummary)
	}
	return router
}

// summarizeRequest is the trigger payload.
type summarizeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	MessageID string `json:"message_id" binding:"required"`
}

// diffPayload is the wire form of one file diff. Counts arrive as
// floats because upstream diff tooling reports them that way; they are
// normalized on ingestion.
type diffPayload struct {
	File      string  `json:"file" binding:"required"`
	Additions float64 `json:"additions"`
	Deletions float64 `json:"deletions"`
	Before    string  `json:"before"`
	After     string  `json:"after"`
}

func (s *Server) putMessages(c *gin.Context) {
	sessionID := c.Param("sessionId")

	var msgs []message.Message
	if err := c.ShouldBindJSON(&msgs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.history.put(c.Request.Context(), sessionID, msgs); err != nil {
		s.logger.Error("history sync failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": len(msgs)})
}

func (s *Server) putSnapshotDiff(c *gin.Context) {
	from := c.Param("from")
	to := c.Param("to")

	var payload []diffPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	diffs := make([]diff.FileDiff, 0, len(payload))
	for _, p := range payload {
		diffs = append(diffs, diff.New(p.File, p.Additions, p.Deletions, p.Before, p.After))
	}

	if err := s.snapshots.put(c.Request.Context(), from, to, diffs); err != nil {
		s.logger.Error("snapshot diff sync failed",
			slog.String("from", from),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist snapshot diff"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "files": len(diffs)})
}

func (s *Server) summarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Synchronous on purpose: concurrent triggers for the same session
	// supersede each other through the flight registry, and the caller
	// learns about persistence failures directly.
	if err := s.summarizer.Summarize(c.Request.Context(), req.SessionID, req.MessageID); err != nil {
		s.logger.Error("summarization failed",
			slog.String("session_id", req.SessionID),
			slog.String("message_id", req.MessageID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summarization failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": req.SessionID, "message_id": req.MessageID})
}

func (s *Server) getDiffs(c *gin.Context) {
	sessionID := c.Param("sessionId")

	diffs, err := s.summarizer.Ordering(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("ordering read failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ordering"})
		return
	}
	if diffs == nil {
		diffs = []diff.FileDiff{}
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "diffs": diffs})
}

func (s *Server) getSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	session, ok, err := s.summarizer.Session(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) getMessageSummary(c *gin.Context) {
	messageID := c.Param("messageId")

	summary, ok, err := s.summarizer.MessageSummary(c.Request.Context(), messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read message summary"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for message"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
