package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cacao-server/confs"
	"cacao-server/metrics"
	"cacao-server/usecases"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 10 * time.Second
	mqttQuiesceMillis  = 250
)

// MQTTIngestor feeds readings published by devices on a broker topic into
// the ingestion use case. Payloads use the HTTP body format.
type MQTTIngestor struct {
	ingest  *usecases.IngestionUseCase
	log     *zap.Logger
	timeout time.Duration
	client  mqtt.Client
}

func NewMQTTIngestor(ingest *usecases.IngestionUseCase, timeout time.Duration, log *zap.Logger) *MQTTIngestor {
	return &MQTTIngestor{ingest: ingest, timeout: timeout, log: log}
}

// Start connects to the broker and subscribes to cfg.Topic. The client
// reconnects and resubscribes on its own after a lost connection.
func (mi *MQTTIngestor) Start(cfg confs.MQTTConfig) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		mi.log.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(cfg.Topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
			_ = mi.HandleMessage(context.Background(), msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			mi.log.Error("mqtt subscribe failed", zap.String("topic", cfg.Topic), zap.Error(token.Error()))
			return
		}
		mi.log.Info("mqtt subscribed", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("failed to connect to MQTT broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	mi.client = client
	return nil
}

// HandleMessage ingests one published payload. Failures are logged and
// counted and returned for tests; the subscriber keeps running.
func (mi *MQTTIngestor) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	var in usecases.ReadingsInput
	if err := json.Unmarshal(payload, &in); err != nil {
		metrics.IngestFailures.WithLabelValues(usecases.TransportMQTT, "decode").Inc()
		mi.log.Warn("mqtt payload rejected", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("decode payload: %w", err)
	}
	if strings.TrimSpace(in.SerialNumber) == "" {
		in.SerialNumber = SerialFromTopic(topic)
	}

	if mi.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mi.timeout)
		defer cancel()
	}
	res, err := mi.ingest.Ingest(ctx, usecases.TransportMQTT, in)
	if err != nil {
		return err
	}
	mi.log.Debug("mqtt readings stored",
		zap.String("serial", res.SerialNumber),
		zap.Int("measurements", res.Measurements),
	)
	return nil
}

// Stop disconnects from the broker.
func (mi *MQTTIngestor) Stop() {
	if mi.client != nil && mi.client.IsConnected() {
		mi.client.Disconnect(mqttQuiesceMillis)
	}
}

// SerialFromTopic returns the topic segment following "devices", or "" when
// there is none.
func SerialFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "devices" {
			return parts[i+1]
		}
	}
	return ""
}
