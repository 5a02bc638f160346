package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
	keepAlive        = 60 * time.Second
	quiesceMillis    = 1000
	maxQoS           = 2

	// A serialised studio timeline stays well under this.
	maxPayloadSize = 1 << 20
)

// Presence is the retained message on the system status topic. The broker
// publishes the "offline" variant as the last will when the core drops.
type Presence struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"clientId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Presence statuses and offline reasons.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"

	reasonShutdown = "shutdown"
	reasonLost     = "connection_lost"
)

func presencePayload(status, reason, clientID string, now time.Time) []byte {
	// Marshalling a struct of strings and a time cannot fail.
	b, _ := json.Marshal(Presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Truncate(time.Second),
	})
	return b
}

func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// buildClientOptions maps the mqtt config section onto paho options,
// including the offline last will.
func buildClientOptions(cfg config.MQTTConfig, now time.Time) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(Topics{}.SystemStatus(), string(presencePayload(PresenceOffline, reasonLost, cfg.Broker.ClientID, now)), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}
