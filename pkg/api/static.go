package api

// FuelRecord is a row of a static or batch fuel price dataset.
type FuelRecord struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Price     *float64 `json:"price"`
}

func price(v float64) *float64 { return &v }

// StaticFuelDataset is a small built-in dataset around Dublin city centre, used when no
// live feed is configured.
var StaticFuelDataset = []FuelRecord{
	{ID: 1, Name: "Circle K", Latitude: 53.3498, Longitude: -6.2603, Price: price(1.55)},
	{ID: 2, Name: "Shell", Latitude: 53.347, Longitude: -6.259, Price: price(1.59)},
	{ID: 3, Name: "Applegreen", Latitude: 53.3441, Longitude: -6.2675, Price: price(1.62)},
	{ID: 4, Name: "Maxol", Latitude: 53.3561, Longitude: -6.2489, Price: nil},
}
