package influx

import (
	"net"
	"strconv"
	"time"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/core/logger"
)

const defaultTimeout = 5 * time.Second

// Options are the connection settings shared by every sender.
type Options struct {
	Protocol     string
	Host         string
	Port         int
	Database     string
	Auth         string
	Bucket       string
	Organization string
	Timeout      time.Duration
	Log          logger.Logger
}

// OptionsFrom reads the sender settings of cfg. defProtocol is used when no
// protocol is configured; an empty defProtocol skips the protocol, as for
// the raw socket transports.
func OptionsFrom(cfg *config.Config, defProtocol string, log logger.Logger) Options {
	o := Options{
		Host:         cfg.Host(),
		Port:         cfg.Port(),
		Database:     cfg.Database(),
		Auth:         cfg.Auth(),
		Bucket:       cfg.Bucket(),
		Organization: cfg.Organization(),
		Timeout:      cfg.ConnectTimeout(),
		Log:          log,
	}
	if defProtocol != "" {
		o.Protocol = cfg.Protocol(defProtocol)
	}
	return o
}

func (o Options) address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultTimeout
	}
	return o.Timeout
}

func (o Options) protocol(def string) string {
	if o.Protocol == "" {
		return def
	}
	return o.Protocol
}
