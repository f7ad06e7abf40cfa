package board

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func TestMockClient_Connect(t *testing.T) {
	m := NewMockClient()

	connected := false
	m.SetOnConnect(func(c mqtt.Client) { connected = true })

	token := m.Connect()
	if !token.WaitTimeout(1 * time.Second) {
		t.Error("Connect should complete immediately")
	}
	if token.Error() != nil {
		t.Errorf("Connect error = %v, want nil", token.Error())
	}
	if !m.IsConnected() {
		t.Error("Client should be connected after Connect()")
	}
	if !connected {
		t.Error("OnConnect handler was not invoked")
	}
}

func TestMockClient_ConnectWithError(t *testing.T) {
	m := NewMockClient()
	expectedErr := errors.New("connection failed")
	m.SetConnectError(expectedErr)
	m.SetOnConnect(func(c mqtt.Client) { t.Error("OnConnect should not run after a failed Connect()") })

	token := m.Connect()
	if token.Error() != expectedErr {
		t.Errorf("Connect error = %v, want %v", token.Error(), expectedErr)
	}
	if m.IsConnected() {
		t.Error("Client should not be connected after failed Connect()")
	}
}

func TestMockClient_Publish(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)

	m.Publish("boards/retro/analyses", 1, true, []byte(`{"board":"retro"}`))
	m.Publish("boards/retro/status", 0, false, "online")

	messages := m.GetPublishedMessages()
	if len(messages) != 2 {
		t.Fatalf("Published messages count = %d, want 2", len(messages))
	}
	if messages[0].QoS != 1 || !messages[0].Retain {
		t.Errorf("first message = %+v, want retained QoS 1", messages[0])
	}
	if string(messages[1].Payload) != "online" {
		t.Errorf("string payload = %q, want %q", messages[1].Payload, "online")
	}

	retained := m.RetainedTopics()
	if len(retained) != 1 || string(retained["boards/retro/analyses"]) != `{"board":"retro"}` {
		t.Errorf("retained = %v, want only the analyses topic", retained)
	}
}

func TestMockClient_PublishEmptyRetainedClears(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)

	m.Publish("boards/retro/groups/3", 1, true, []byte("x"))
	m.Publish("boards/retro/groups/3", 1, true, []byte{})

	if _, ok := m.RetainedTopics()["boards/retro/groups/3"]; ok {
		t.Error("empty retained payload should clear the topic")
	}
	if got := len(m.GetPublishedMessages()); got != 2 {
		t.Errorf("Published messages count = %d, want 2", got)
	}
}

func TestMockClient_PublishErrors(t *testing.T) {
	m := NewMockClient()

	if err := m.Publish("t", 0, false, []byte("data")).Error(); err != mqtt.ErrNotConnected {
		t.Errorf("Publish error = %v, want ErrNotConnected", err)
	}

	m.SetConnected(true)
	publishErr := errors.New("queue full")
	m.SetPublishError(publishErr)
	if err := m.Publish("t", 0, false, []byte("data")).Error(); err != publishErr {
		t.Errorf("Publish error = %v, want %v", err, publishErr)
	}
	if got := len(m.GetPublishedMessages()); got != 0 {
		t.Errorf("failed publishes should not be recorded, got %d", got)
	}
}

func TestMockClient_SubscribeAndSimulate(t *testing.T) {
	m := NewMockClient()

	if err := m.Subscribe("boards/retro/export", 1, nil).Error(); err != mqtt.ErrNotConnected {
		t.Errorf("Subscribe error = %v, want ErrNotConnected", err)
	}

	m.SetConnected(true)
	var got mqtt.Message
	m.Subscribe("boards/retro/export", 1, func(c mqtt.Client, msg mqtt.Message) { got = msg })

	m.SimulateMessage("boards/retro/export", []byte("ID\n"))
	if got == nil {
		t.Fatal("handler was not invoked")
	}
	if got.Topic() != "boards/retro/export" || string(got.Payload()) != "ID\n" || got.Qos() != 1 {
		t.Errorf("message = %s %q qos %d", got.Topic(), got.Payload(), got.Qos())
	}

	m.Unsubscribe("boards/retro/export")
	if m.Subscribed("boards/retro/export") {
		t.Error("topic should not be subscribed after Unsubscribe")
	}
	got = nil
	m.SimulateMessage("boards/retro/export", []byte("ID\n"))
	if got != nil {
		t.Error("unsubscribed handler should not be invoked")
	}
}

func TestMockClient_SubscribeError(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	subErr := errors.New("not authorized")
	m.SetSubscribeError(subErr)

	if err := m.Subscribe("t", 0, nil).Error(); err != subErr {
		t.Errorf("Subscribe error = %v, want %v", err, subErr)
	}
	if m.Subscribed("t") {
		t.Error("failed subscription should not register a handler")
	}
}

func TestMockClient_Disconnect(t *testing.T) {
	m := NewMockClient()
	m.Connect()
	m.Disconnect(250)
	if m.IsConnected() || m.IsConnectionOpen() {
		t.Error("Client should not be connected after Disconnect()")
	}
}

func TestMockToken(t *testing.T) {
	token := NewMockToken(nil)
	select {
	case <-token.Done():
	default:
		t.Error("Done channel should be closed")
	}
	if !token.Wait() {
		t.Error("Wait should return true")
	}
}
