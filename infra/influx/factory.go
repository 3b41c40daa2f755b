package influx

import (
	"errors"
	"fmt"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/core/factory"
	"github.com/kilianp07/brokerflux/core/logger"
	"github.com/kilianp07/brokerflux/core/metrics"
)

// Sender type names.
const (
	SenderConsole = "console"
	SenderHTTP    = config.ModeHTTP
	SenderTCP     = config.ModeTCP
	SenderUDP     = config.ModeUDP
	SenderCloud   = config.ModeCloud
	SenderV3      = "v3"
)

type senderFactory = factory.Factory[senderInput, metrics.Sender]

type senderInput struct {
	cfg *config.Config
	log logger.Logger
}

var senders = factory.NewRegistry[senderInput, metrics.Sender]()

func init() {
	senders.MustRegister(SenderConsole, func(in senderInput) (metrics.Sender, error) {
		return NewConsoleSender(in.log), nil
	})
	senders.MustRegister(SenderHTTP, withDefaultProtocol("http", func(o Options) (metrics.Sender, error) {
		return NewV1Sender(o)
	}))
	senders.MustRegister(SenderTCP, withDefaultProtocol("", func(o Options) (metrics.Sender, error) {
		return NewTCPSender(o)
	}))
	senders.MustRegister(SenderUDP, withDefaultProtocol("", func(o Options) (metrics.Sender, error) {
		return NewUDPSender(o)
	}))
	senders.MustRegister(SenderCloud, withDefaultProtocol("https", func(o Options) (metrics.Sender, error) {
		return NewCloudSender(o)
	}))
	senders.MustRegister(SenderV3, withDefaultProtocol("http", func(o Options) (metrics.Sender, error) {
		return NewV3Sender(o)
	}))
}

func withDefaultProtocol(def string, build func(Options) (metrics.Sender, error)) senderFactory {
	return func(in senderInput) (metrics.Sender, error) {
		return build(OptionsFrom(in.cfg, def, in.log))
	}
}

// SenderType returns the sender NewSender builds for cfg: console when
// consoleDebug is set, v3 and cloud for versions 3 and 2, otherwise the
// configured mode.
func SenderType(cfg *config.Config) string {
	switch {
	case cfg.ConsoleDebug():
		return SenderConsole
	case cfg.Version() == 3:
		return SenderV3
	case cfg.Version() == 2:
		return SenderCloud
	default:
		return cfg.Mode()
	}
}

// NewSender builds the sender matching cfg.
func NewSender(cfg *config.Config, log logger.Logger) (metrics.Sender, error) {
	log = logger.OrNop(log)
	name := SenderType(cfg)
	s, err := senders.Create(name, senderInput{cfg: cfg, log: log})
	if errors.Is(err, factory.ErrUnknown) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s sender: %w", name, err)
	}
	log.Infof("created influxdb %s sender for %s:%d", name, cfg.Host(), cfg.Port())
	return s, nil
}
