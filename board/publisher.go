package board

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes board analyses to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	groupCounts   map[string]int // board -> groups in the last publish
	mu            sync.Mutex
}

// analysesMessage is the payload of <prefix>/<board>/analyses
type analysesMessage struct {
	Board     string     `json:"board"`
	Analyses  []Analysis `json:"analyses"`
	Anomalies []Anomaly  `json:"anomalies,omitempty"`
	Stats     BuildStats `json:"stats"`
	Timestamp int64      `json:"timestamp"`
}

// NewPublisher creates a publisher. MQTT_PUBLISH_PREFIX overrides prefix;
// an empty prefix falls back to DefaultPublishPrefix. A nil client disables
// publishing.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,    // QoS 1 so a dropped connection does not lose a board update
		retain:        true, // retain so late subscribers get the latest analyses
		groupCounts:   make(map[string]int),
	}
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// AnalysesTopic returns the topic carrying all analyses of a board
func (p *Publisher) AnalysesTopic(boardID string) string {
	return fmt.Sprintf("%s/%s/analyses", p.publishPrefix, boardID)
}

// GroupTopic returns the topic carrying one group's analysis
func (p *Publisher) GroupTopic(boardID string, group int) string {
	return fmt.Sprintf("%s/%s/groups/%d", p.publishPrefix, boardID, group)
}

// PublishResult publishes the combined analyses and one message per group.
// Retained group topics left over from a previous run with more groups are
// cleared.
func (p *Publisher) PublishResult(boardID string, res *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	msg := analysesMessage{
		Board:     boardID,
		Analyses:  res.Analyses,
		Anomalies: res.Anomalies,
		Stats:     res.Stats,
		Timestamp: res.CreatedAt.Unix(),
	}
	if err := p.publishJSON(p.AnalysesTopic(boardID), msg); err != nil {
		log.Error("publishing analyses", "board", boardID, "err", err)
		return err
	}

	for _, a := range res.Analyses {
		if err := p.publishJSON(p.GroupTopic(boardID, a.Group), a); err != nil {
			log.Error("publishing group", "board", boardID, "group", a.Group, "err", err)
			return err
		}
	}

	p.mu.Lock()
	prev := p.groupCounts[boardID]
	p.groupCounts[boardID] = len(res.Analyses)
	p.mu.Unlock()

	if p.retain {
		for g := len(res.Analyses); g < prev; g++ {
			if err := p.publish(p.GroupTopic(boardID, g), []byte{}); err != nil {
				return err
			}
		}
	}

	log.Info("published analyses", "board", boardID, "groups", len(res.Analyses))
	return nil
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", topic, err)
	}
	return p.publish(topic, payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
