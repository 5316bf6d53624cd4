package model

// Station represents a charging site with one or more connectors.
type Station struct {
	ID   string  `json:"station_id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`

	// EmergencyBuffer is the minimum number of connectors the station
	// must keep uncommitted for unplanned demand.
	EmergencyBuffer int `json:"emergency_buffer"`
}
