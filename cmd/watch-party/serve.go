package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cwrk-planet/watch-party/internal/relay"
	"github.com/cwrk-planet/watch-party/internal/service"
	grpcx "github.com/cwrk-planet/watch-party/internal/transport/grpc"
	httpx "github.com/cwrk-planet/watch-party/internal/transport/http"
	httpmw "github.com/cwrk-planet/watch-party/internal/transport/http/middleware"
	"github.com/cwrk-planet/watch-party/internal/transport/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket relay and the gRPC health server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// span ids for log correlation; no exporter is configured
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.Logging.Service),
			attribute.String("service.version", cfg.Logging.Version),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// --- storage & cache ---
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	profileCache, closeCache := openProfileCache(ctx, cfg)
	defer closeCache()

	// --- services ---
	profileSvc := service.NewProfileService(st.users, profileCache)
	roomSvc := service.NewRoomService(st.rooms, st.messages)
	chatSvc := service.NewChatService(st.messages, profileSvc, cfg.Chat.MaxMessageLen)

	// --- relay & WS ---
	registry := relay.NewRegistry()
	wsServer := ws.NewServer(relay.NewHandler(registry, chatSvc, roomSvc), ws.Options{
		MaxFrameBytes:  cfg.WS.MaxFrameBytes,
		PingEvery:      cfg.WS.PingEvery,
		SendBuffer:     cfg.WS.SendBuffer,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	// --- HTTP ---
	var verifier httpmw.TokenVerifier
	if cfg.Auth.JWTPublicKeyPath != "" {
		pub, err := httpmw.LoadRSAPublicKeyFromPEM(cfg.Auth.JWTPublicKeyPath)
		if err != nil {
			return fmt.Errorf("jwt public key: %w", err)
		}
		verifier = httpmw.NewJWTVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.ClockSkew)
	}

	handler := httpx.NewHandler(roomSvc, profileSvc, registry, st)
	router := httpx.NewRouter(handler, wsServer, httpx.RouterOptions{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Verifier:    verifier,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	httpSrv.RegisterOnShutdown(wsServer.Shutdown)

	// --- run ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var stopGRPC func()
	if cfg.GRPC.Addr != "" {
		health := grpcx.NewHealth(st, 10*time.Second)
		grpcServer := grpcx.NewServer(health)
		go health.Run(ctx)

		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		stopGRPC = grpcServer.GracefulStop
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if stopGRPC != nil {
		stopGRPC()
	}
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	slog.Info("stopped")
	return nil
}
