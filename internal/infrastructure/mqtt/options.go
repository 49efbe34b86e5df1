package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/fleetd/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker connection.
	connectTimeout = 10 * time.Second

	// publishTimeout bounds the wait for a publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesceMillis is how long Disconnect waits for
	// in-flight operations, in milliseconds as paho expects.
	disconnectQuiesceMillis = 1000

	// keepAlive is the MQTT keepalive interval; the broker uses it to
	// detect dead connections.
	keepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2
)

// buildClientOptions translates fleetd's MQTT config into paho client
// options: broker URL, client identity, optional credentials and TLS,
// and auto-reconnect with the configured backoff. Sessions are always
// clean; fleetd only publishes, so there is no subscription state
// worth persisting on the broker.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	return opts
}

// statusMessage is the payload published to the system status topic
// and set as the Last Will.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	payload, _ := json.Marshal(statusMessage{ //nolint:errcheck // Fixed struct cannot fail to marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

// onlineStatusPayload announces a live connection.
func onlineStatusPayload(clientID string) []byte {
	return statusPayload("online", clientID, "")
}

// stoppedStatusPayload announces a graceful shutdown.
func stoppedStatusPayload(clientID string) []byte {
	return statusPayload("offline", clientID, "graceful_shutdown")
}

// lostStatusPayload is the Last Will the broker publishes when fleetd
// disappears without disconnecting.
func lostStatusPayload(clientID string) []byte {
	return statusPayload("offline", clientID, "unexpected_disconnect")
}
