package weather

import (
	"strconv"
	"time"
)

// Coordinates identifies the fixed point we record weather for.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Key returns a canonical string key for logging this location.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Conditions are the current-condition values one provider call returns.
type Conditions struct {
	ProviderName string
	ObservedAt   time.Time

	TemperatureC  float64
	PrecipMm      float64
	PressureHpa   float64
	WindSpeedMS   float64
	WindDirection float64
}

// Reading is one stored snapshot. Readings are append-only: storage assigns
// ID on insert and nothing updates or deletes them afterwards.
type Reading struct {
	ID                  uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp           time.Time `json:"timestamp" gorm:"not null;index"` // capture time, UTC
	Temperature         float64   `json:"temperatureC"`
	PrecipitationAmount float64   `json:"precipitationMm" gorm:"column:precipitation_amount"`
	Pressure            float64   `json:"pressureHpa"`
	WindSpeed           float64   `json:"windSpeedMs"`
	WindDirection       float64   `json:"windDirectionDeg"`
}

// TableName keeps the table name used by existing databases.
func (Reading) TableName() string {
	return "weather_data"
}

// NewReading builds a Reading captured at ts from provider conditions.
func NewReading(ts time.Time, c Conditions) Reading {
	return Reading{
		Timestamp:           ts.UTC(),
		Temperature:         c.TemperatureC,
		PrecipitationAmount: c.PrecipMm,
		Pressure:            c.PressureHpa,
		WindSpeed:           c.WindSpeedMS,
		WindDirection:       c.WindDirection,
	}
}
