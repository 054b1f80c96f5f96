package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/i474232898/weather-recorder/internal/weather"
)

func TestNewMessageJSON(t *testing.T) {
	r := weather.Reading{
		ID:                  42,
		Timestamp:           time.Date(2024, 5, 1, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
		Temperature:         14.5,
		PrecipitationAmount: 0.2,
		Pressure:            1013.1,
		WindSpeed:           3.4,
		WindDirection:       270,
	}

	data, err := json.Marshal(NewMessage(r))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"id":                 float64(42),
		"timestamp":          "2024-05-01T12:00:00Z",
		"temperature_c":      14.5,
		"precipitation_mm":   0.2,
		"pressure_hpa":       1013.1,
		"wind_speed_ms":      3.4,
		"wind_direction_deg": float64(270),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %v, want %v", k, got[k], v)
		}
	}
}

func TestPublishWithoutConnectionFails(t *testing.T) {
	p := NewMQTTPublisher(Config{Broker: "127.0.0.1", Port: 1, ClientID: "test", Topic: "weather/readings"}, nil)
	defer p.Disconnect()

	if err := p.PublishReading(context.Background(), weather.Reading{ID: 1}); err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestConnectAfterDisconnectFails(t *testing.T) {
	p := NewMQTTPublisher(Config{Broker: "127.0.0.1", Port: 1, ClientID: "test", Topic: "weather/readings"}, nil)
	p.Disconnect()
	p.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Connect(ctx); err == nil {
		t.Fatal("expected error connecting a stopped publisher")
	}
}
