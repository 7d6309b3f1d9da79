// Package transportfactory selects the peer transport named by the
// configuration.
package transportfactory

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/gatt"
	"github.com/srg/telebridge/internal/transport/goble"
	"github.com/srg/telebridge/internal/transport/mqtt"
	"github.com/srg/telebridge/pkg/config"
)

// New creates a gatt.Transport for cfg.Transport. It is a variable so that
// it can be overridden in tests.
var New = func(cfg *config.Config, logger *logrus.Logger) (gatt.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportBLE:
		return goble.New(logger), nil
	case config.TransportMQTT:
		m := cfg.Transport.MQTT
		return mqtt.New(mqtt.Options{
			Broker:      m.Broker,
			ClientID:    m.ClientID,
			TopicPrefix: m.TopicPrefix,
			DeviceName:  cfg.DeviceName,
			QoS:         m.QoS,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}
