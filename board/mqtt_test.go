package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// exportRecorder is a testify mock standing in for an ExportHandler
type exportRecorder struct {
	mock.Mock
}

func (r *exportRecorder) handle(boardID string, payload []byte) {
	r.Called(boardID, payload)
}

func mqttTestConfig() *Config {
	return &Config{
		Boards: []BoardConfig{
			{ID: "retro", Topic: "boards/retro/export"},
			{ID: "planning", Topic: "boards/planning/export"},
			{ID: "offline", URL: "https://boards.example.com/offline.csv"},
		},
	}
}

func TestInitMQTT_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	client, err := InitMQTT(mqttTestConfig(), func(string, []byte) {})
	assert.NoError(t, err)
	assert.Nil(t, client)

	client, err = InitMQTT(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitMQTT_NoBoards(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	config := &Config{MQTT: MQTTConfig{Broker: "tcp://localhost:1883"}}
	_, err := InitMQTT(config, func(string, []byte) {})
	assert.EqualError(t, err, "MQTT enabled but no boards configured")
}

func TestMQTTClient_IsConnected(t *testing.T) {
	client := &MQTTClient{}
	assert.False(t, client.IsConnected(), "New client should not be connected")

	client.setConnected(true)
	assert.True(t, client.IsConnected())

	client.onConnectionLost(nil, errors.New("broker went away"))
	assert.False(t, client.IsConnected())
}

func TestMQTTClient_OnConnectSubscribesBoards(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	c := newMQTTClientWithMock(m, mqttTestConfig(), nil)

	c.onConnect(m)

	assert.True(t, c.IsConnected())
	assert.True(t, m.Subscribed("boards/retro/export"))
	assert.True(t, m.Subscribed("boards/planning/export"))
	assert.False(t, m.Subscribed(""), "boards without a topic are not subscribed")
}

func TestMQTTClient_OnConnectSubscribeError(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	m.SetSubscribeError(errors.New("not authorized"))
	c := newMQTTClientWithMock(m, mqttTestConfig(), nil)

	c.onConnect(m)

	assert.True(t, c.IsConnected(), "a failed subscription does not drop the connection")
	assert.False(t, m.Subscribed("boards/retro/export"))
}

func TestMQTTClient_DeliversExports(t *testing.T) {
	rec := &exportRecorder{}
	rec.On("handle", "retro", []byte("ID,Text\n")).Once()
	rec.On("handle", "planning", []byte("ID\n")).Once()

	m := NewMockClient()
	m.SetConnected(true)
	c := newMQTTClientWithMock(m, mqttTestConfig(), rec.handle)
	c.onConnect(m)

	m.SimulateMessage("boards/retro/export", []byte("ID,Text\n"))
	m.SimulateMessage("boards/planning/export", []byte("ID\n"))
	m.SimulateMessage("boards/unknown/export", []byte("ID\n"))

	rec.AssertExpectations(t)
}

func TestMQTTClient_SkipsEmptyPayload(t *testing.T) {
	rec := &exportRecorder{}

	m := NewMockClient()
	m.SetConnected(true)
	c := newMQTTClientWithMock(m, mqttTestConfig(), rec.handle)
	c.onConnect(m)

	m.SimulateMessage("boards/retro/export", []byte{})
	m.SimulateMessage("boards/retro/export", nil)

	rec.AssertNotCalled(t, "handle", mock.Anything, mock.Anything)
}

func TestMQTTClient_NilHandler(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	c := newMQTTClientWithMock(m, mqttTestConfig(), nil)
	c.onConnect(m)

	assert.NotPanics(t, func() {
		m.SimulateMessage("boards/retro/export", []byte("ID\n"))
	})
}

func TestMQTTClient_Disconnect(t *testing.T) {
	m := NewMockClient()
	m.SetConnected(true)
	c := newMQTTClientWithMock(m, mqttTestConfig(), nil)
	c.setConnected(true)

	c.Disconnect()

	assert.False(t, m.IsConnected())
	assert.False(t, c.IsConnected())

	// disconnecting twice is harmless
	assert.NotPanics(t, c.Disconnect)
	assert.NotPanics(t, (&MQTTClient{}).Disconnect)
}

func TestMQTTClient_GetBoardByTopic(t *testing.T) {
	c := newMQTTClientWithMock(NewMockClient(), mqttTestConfig(), nil)

	tests := []struct {
		name   string
		topic  string
		wantID string
		wantOK bool
	}{
		{"retro", "boards/retro/export", "retro", true},
		{"planning", "boards/planning/export", "planning", true},
		{"unknown", "boards/unknown/export", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK := c.GetBoardByTopic(tt.topic)
			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantOK, gotOK)
		})
	}
}

func TestMQTTClient_GetClient(t *testing.T) {
	m := NewMockClient()
	c := newMQTTClientWithMock(m, mqttTestConfig(), nil)
	assert.Same(t, m, c.GetClient())
}
