package control_toolbox

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.viam.com/rdk/logging"
)

// MQTTBusConfig configures a broker-backed wrench bus.
type MQTTBusConfig struct {
	BrokerURI string `json:"broker_uri"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	QoS       byte   `json:"qos,omitempty"`
}

// wrenchPayload is the JSON wire format for wrench messages on MQTT topics.
type wrenchPayload struct {
	FrameID string     `json:"frame_id"`
	StampNS int64      `json:"stamp_ns"`
	Force   [3]float64 `json:"force"`
	Torque  [3]float64 `json:"torque"`
}

func encodeWrench(msg WrenchStamped) ([]byte, error) {
	return json.Marshal(wrenchPayload{
		FrameID: msg.FrameID,
		StampNS: msg.Time.UnixNano(),
		Force:   [3]float64{msg.Wrench.Force.X, msg.Wrench.Force.Y, msg.Wrench.Force.Z},
		Torque:  [3]float64{msg.Wrench.Torque.X, msg.Wrench.Torque.Y, msg.Wrench.Torque.Z},
	})
}

func decodeWrench(data []byte) (WrenchStamped, error) {
	var p wrenchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return WrenchStamped{}, fmt.Errorf("failed to decode wrench payload: %w", err)
	}
	msg := WrenchStamped{
		FrameID: p.FrameID,
		Time:    time.Unix(0, p.StampNS),
	}
	msg.Wrench.Force.X, msg.Wrench.Force.Y, msg.Wrench.Force.Z = p.Force[0], p.Force[1], p.Force[2]
	msg.Wrench.Torque.X, msg.Wrench.Torque.Y, msg.Wrench.Torque.Z = p.Torque[0], p.Torque[1], p.Torque[2]
	return msg, nil
}

// MQTTBus is a WrenchBus carried over an MQTT broker, for force/torque
// sensors that publish over the network instead of in-process. Handler
// invocations are serialized with a dispatch lock, matching the LocalBus
// contract.
type MQTTBus struct {
	client   mqtt.Client
	qos      byte
	logger   logging.Logger
	dispatch sync.Mutex
}

func NewMQTTBus(cfg MQTTBusConfig, logger logging.Logger) (*MQTTBus, error) {
	if cfg.BrokerURI == "" {
		return nil, fmt.Errorf("mqtt bus requires a broker URI")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "control-toolbox"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURI).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Infof("connected to MQTT broker %s", cfg.BrokerURI)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.BrokerURI, token.Error())
	}

	return &MQTTBus{client: client, qos: cfg.QoS, logger: logger}, nil
}

func (b *MQTTBus) Subscribe(topic string, handler WrenchHandler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("nil wrench handler")
	}

	callback := func(_ mqtt.Client, m mqtt.Message) {
		msg, err := decodeWrench(m.Payload())
		if err != nil {
			b.logger.Warnf("dropping malformed wrench message on %s: %v", m.Topic(), err)
			return
		}
		b.dispatch.Lock()
		defer b.dispatch.Unlock()
		handler(msg)
	}

	if token := b.client.Subscribe(topic, b.qos, callback); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	return &mqttSubscription{bus: b, topic: topic}, nil
}

func (b *MQTTBus) Publish(topic string, msg WrenchStamped) error {
	payload, err := encodeWrench(msg)
	if err != nil {
		return err
	}
	if token := b.client.Publish(topic, b.qos, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (b *MQTTBus) Close() {
	b.client.Disconnect(250)
}

type mqttSubscription struct {
	bus   *MQTTBus
	topic string
	once  sync.Once
}

func (s *mqttSubscription) Close() {
	s.once.Do(func() {
		if token := s.bus.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
			s.bus.logger.Warnf("failed to unsubscribe from %s: %v", s.topic, token.Error())
		}
	})
}
