// serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - laedt das Modell und startet den HTTP-Server
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shubhanshu02/ffmpeg-1/dnn"
	"github.com/shubhanshu02/ffmpeg-1/envconfig"
	"github.com/shubhanshu02/ffmpeg-1/logutil"
)

// Serve laedt das Modell und bedient Anfragen bis SIGINT/SIGTERM
func Serve(ln net.Listener, modelPath string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.AsMap())

	model, err := dnn.LoadModel(modelPath, dnn.Options{})
	if err != nil {
		return err
	}
	defer model.Close()

	s := NewServer(model)
	defer s.Close()

	srv := &http.Server{Handler: s.GenerateRoutes()}

	ctx, done := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down")
		srv.Shutdown(ctx)
		done()
	}()

	slog.Info("listening", "addr", ln.Addr(), "model", modelPath)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-ctx.Done()
	return nil
}
