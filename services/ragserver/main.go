// Copyright (C) 2026 Rupert Tadman
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rupertt/rag-citations-app/services/llm"
	"github.com/rupertt/rag-citations-app/services/ragserver/agents"
	"github.com/rupertt/rag-citations-app/services/ragserver/config"
	"github.com/rupertt/rag-citations-app/services/ragserver/datatypes"
	"github.com/rupertt/rag-citations-app/services/ragserver/handlers"
	"github.com/rupertt/rag-citations-app/services/ragserver/observability"
	"github.com/rupertt/rag-citations-app/services/ragserver/pipeline"
	"github.com/rupertt/rag-citations-app/services/ragserver/prompts"
	"github.com/rupertt/rag-citations-app/services/ragserver/retrieval"
	"github.com/rupertt/rag-citations-app/services/ragserver/routes"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("rag-citations-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using the process environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	weaviateURL := strings.Trim(cfg.WeaviateURL, "\"' ")
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Fatalf("WEAVIATE_SERVICE_URL is invalid: %q (%v)", weaviateURL, err)
	}
	weaviateClient, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	datatypes.EnsureWeaviateSchema(weaviateClient)

	log.Println("Configuring the LLM Client")
	llmClient, err := llm.NewClient(cfg.LLMBackend)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	slog.Info("Using LLM backend", "backend", cfg.LLMBackend)

	embedder, err := retrieval.NewOpenAIEmbedder(cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("Failed to initialize embedder: %v", err)
	}
	retriever := retrieval.NewWeaviateRetriever(weaviateClient, embedder)
	promptCache := prompts.NewCache(cfg.PromptsDir)

	var answerer handlers.Answerer
	mode := "direct"
	if cfg.AgentMode {
		mode = "agent"
		answerer = pipeline.New(agents.NewLLMGenerator(llmClient, promptCache), retriever)
	} else {
		answerer = pipeline.NewDirectAnswerer(retriever, llmClient, promptCache)
	}
	slog.Info("Answering mode selected", "mode", mode)

	router := gin.Default()
	router.Use(otelgin.Middleware("rag-citations-service"))

	routes.SetupRoutes(router, weaviateClient, answerer, embedder, cfg, mode)

	log.Println("Starting the answer server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
