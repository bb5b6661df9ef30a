// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers holds the gin HTTP handlers for the answer service.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/observability"
)

// Answerer is the answering capability behind POST /ask. Both the agent
// pipeline and the direct answerer satisfy it.
type Answerer interface {
	Answer(ctx context.Context, req *datatypes.AskRequest) (*datatypes.AskResponse, error)
}

// HandleAsk binds the request, runs the answerer and maps outcomes to
// status codes. Grounding refusals are 200s; only upstream failures
// become 500s.
func HandleAsk(answerer Answerer, mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
		req.EnsureDefaults()

		start := time.Now()
		resp, err := answerer.Answer(c.Request.Context(), &req)
		if err != nil {
			slog.Error("Answering failed", "mode", mode, "error", err)
			observeAsk(mode, "error", start)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status := "answered"
		if resp.Answer == datatypes.RefusalAnswer {
			status = "refused"
		}
		observeAsk(mode, status, start)
		slog.Info("Answered question", "mode", mode, "status", status,
			"citations", len(resp.Citations), "duration_ms", time.Since(start).Milliseconds())
		c.JSON(http.StatusOK, resp)
	}
}

func observeAsk(mode, status string, start time.Time) {
	if observability.DefaultMetrics == nil {
		return
	}
	observability.DefaultMetrics.RequestsTotal.WithLabelValues(mode, status).Inc()
	observability.DefaultMetrics.AnswerDuration.WithLabelValues(mode, status).Observe(time.Since(start).Seconds())
}
