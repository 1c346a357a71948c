package openaq

import "time"

// Only the fields the pipeline consumes are modelled; the provider returns
// considerably more.

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Parameter struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
}

type Sensor struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Parameter Parameter `json:"parameter"`
}

type Location struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	Sensors     []Sensor    `json:"sensors"`
}

type Datetime struct {
	UTC   time.Time `json:"utc"`
	Local string    `json:"local"`
}

// Measurement is one entry of the /locations/{id}/latest response.
type Measurement struct {
	SensorsID   int       `json:"sensorsId"`
	LocationsID int       `json:"locationsId"`
	Value       float64   `json:"value"`
	Datetime    *Datetime `json:"datetime,omitempty"`
}

// Query selects locations within Radius metres of Center.
type Query struct {
	Center Coordinates
	Radius int
}

// CalgaryQuery is the fixed area the pipeline covers.
var CalgaryQuery = Query{
	Center: Coordinates{Latitude: 51.0447, Longitude: -114.0719},
	Radius: 25_000,
}
