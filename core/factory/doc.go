// Package factory provides a small generic registry used to pick an
// implementation by name. Factories receive a typed configuration value and
// return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[*config.Config, metrics.Sender]()
//	reg.Register("udp", func(c *config.Config) (metrics.Sender, error) {
//	    return influx.NewUDPSender(c.Host(), c.Port())
//	})
//	s, err := reg.Create("udp", cfg)
package factory
