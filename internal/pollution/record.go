// Package pollution turns OpenAQ locations and their latest measurements into
// flat PollutionRecords.
package pollution

import "github.com/lucasfepe/5G-PollutionMap/internal/openaq"

// Record is one measurement joined with its location and sensor metadata.
type Record struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Pollutant string  `json:"pollutant"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// Flatten joins each measurement to the sensor with the same id in loc.
// Measurements whose sensor is not listed on the location are skipped.
func Flatten(loc openaq.Location, measurements []openaq.Measurement) []Record {
	out := make([]Record, 0, len(measurements))
	for _, m := range measurements {
		sensor, ok := findSensor(loc.Sensors, m.SensorsID)
		if !ok {
			continue
		}
		out = append(out, Record{
			ID:        loc.ID,
			Name:      loc.Name,
			Lat:       loc.Coordinates.Latitude,
			Lon:       loc.Coordinates.Longitude,
			Pollutant: sensor.Parameter.DisplayName,
			Value:     m.Value,
			Unit:      sensor.Parameter.Units,
		})
	}
	return out
}

func findSensor(sensors []openaq.Sensor, id int) (openaq.Sensor, bool) {
	for _, s := range sensors {
		if s.ID == id {
			return s, true
		}
	}
	return openaq.Sensor{}, false
}
