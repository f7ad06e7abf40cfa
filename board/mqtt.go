package board

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ExportHandler is called with the raw CSV payload of a board export
type ExportHandler func(boardID string, payload []byte)

// MQTTClient manages the MQTT connection and the board export subscriptions
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     ExportHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the configured broker and subscribes to every board
// topic. MQTT_BROKER overrides the configured broker; when neither is set
// MQTT is disabled and InitMQTT returns nil, nil.
func InitMQTT(config *Config, handler ExportHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Info("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Boards) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no boards configured")
	}

	client := &MQTTClient{
		config:  config,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "stickymesh"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)   // longer than the default 30s to reduce spurious disconnects
	opts.SetPingTimeout(10 * time.Second) // timeout for ping response
	opts.SetCleanSession(false)           // preserve subscriptions on reconnect
	opts.SetOrderMatters(false)           // allow concurrent processing

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Info("Connecting to MQTT broker")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Info("Connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Warn("MQTT connection failed", "err", token.Error())
		} else {
			log.Warn("MQTT connection timeout")
		}

		// Exponential backoff
		log.Info("Retrying MQTT connection", "in", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the export topic of every configured board
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Info("MQTT connected, subscribing to board topics")
	c.setConnected(true)

	for _, b := range c.config.Boards {
		if b.Topic == "" {
			log.Debug("board has no topic, skipping subscription", "board", b.ID)
			continue
		}

		token := client.Subscribe(b.Topic, 1, c.createMessageHandler(b.ID))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Error("subscribe failed", "topic", b.Topic, "board", b.ID, "err", token.Error())
		} else {
			log.Info("subscribed", "topic", b.Topic, "board", b.ID)
		}
	}
}

// onConnectionLost is called when the MQTT connection is lost.
// Auto-reconnect is enabled, so this is typically a transient event.
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Warn("MQTT connection interrupted, auto-reconnect will retry", "err", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Info("MQTT reconnecting")
}

// createMessageHandler creates the handler for one board's export topic
func (c *MQTTClient) createMessageHandler(boardID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Info("received board export", "board", boardID, "topic", msg.Topic(), "bytes", len(payload))

		if len(payload) == 0 {
			log.Warn("empty export payload, skipping", "board", boardID)
			return
		}
		// Raw CSV goes to the handler; parsing happens in the pipeline
		if c.handler != nil {
			c.handler(boardID, payload)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting from MQTT broker")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetBoardByTopic returns the board ID subscribed to the given topic
func (c *MQTTClient) GetBoardByTopic(topic string) (string, bool) {
	return c.config.GetBoardByTopic(topic)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient around a provided mqtt.Client
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler ExportHandler) *MQTTClient {
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}
