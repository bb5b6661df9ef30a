// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/rupertt/rag-citations-app/services/ragserver/config"
	"github.com/rupertt/rag-citations-app/services/ragserver/handlers"
	"github.com/rupertt/rag-citations-app/services/ragserver/retrieval"
)

// SetupRoutes registers every endpoint on the router. The answering mode
// string only labels metrics and logs.
func SetupRoutes(router *gin.Engine, client *weaviate.Client, answerer handlers.Answerer,
	embedder retrieval.Embedder, cfg config.Config, mode string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/ask", handlers.HandleAsk(answerer, mode))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/documents", handlers.CreateDocument(client, embedder, cfg))
		v1.GET("/documents", handlers.ListDocuments(client))
		v1.DELETE("/document", handlers.DeleteDocument(client))
	}
}
