package publish

import (
	"fmt"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	ServiceType = "_mediaplayer._tcp"
	domainLocal = "local."
)

// Advertiser announces the WebSocket endpoint over mDNS
type Advertiser struct {
	logger   *zap.Logger
	instance string

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser for the given service instance name
func NewAdvertiser(logger *zap.Logger, instance string) *Advertiser {
	return &Advertiser{
		logger:   logger,
		instance: instance,
	}
}

// Start registers the service on port
func (a *Advertiser) Start(port int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("service %q already advertised", a.instance)
	}
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	server, err := zeroconf.Register(a.instance, ServiceType, domainLocal, port, []string{"path=/ws"}, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server

	a.logger.Info("Service advertised",
		zap.String("instance", a.instance),
		zap.String("type", ServiceType),
		zap.Int("port", port))
	return nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Debug("Service advertisement stopped", zap.String("instance", a.instance))
	}
}
