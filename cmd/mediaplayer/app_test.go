package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/genricoloni/mediaplayer/internal/bus/mocks"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/genricoloni/mediaplayer/internal/publish"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func daemonParams(m *mocks.MockClient, addr string) hookParams {
	logger := zap.NewNop()
	cfg := testConfig()
	cfg.Serve.Enabled = true
	cfg.Serve.Addr = addr

	hub := publish.NewHub(logger)
	return hookParams{
		Logger:     logger,
		Config:     cfg,
		Engine:     newEngine(logger, m, cfg),
		Hub:        hub,
		Server:     publish.NewServer(logger, hub, addr),
		Advertiser: publish.NewAdvertiser(logger, "test"),
	}
}

// freeAddr returns a loopback address nobody listens on
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestStartDaemon_WatchFailureReleasesResources(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mocks.NewMockClient(ctrl)
	m.EXPECT().AddMatchSignal(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("add match: %w", domain.ErrTransport))
	// The bus connection is closed exactly once
	m.EXPECT().Close().Return(nil).Times(1)

	addr := freeAddr(t)
	p := daemonParams(m, addr)

	if err := startDaemon(context.Background(), p); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("Expected ErrTransport, got %v", err)
	}
	if port := p.Server.Port(); port != 0 {
		t.Errorf("Expected the server to be stopped, still on port %d", port)
	}

	// The listener is gone, so the address can be bound again
	again, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("Expected %s to be released: %v", addr, err)
	}
	again.Close()
}

func TestStartDaemon_ServeFailureClosesEngine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mocks.NewMockClient(ctrl)
	m.EXPECT().Close().Return(nil).Times(1)

	p := daemonParams(m, "invalid-address")

	if err := startDaemon(context.Background(), p); err == nil {
		t.Fatal("Expected an error for an invalid listen address")
	}
}
