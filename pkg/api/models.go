package api

// GasStationList represents the response structure from the Spanish fuel price API.
type GasStationList struct {
	Fecha             string       `json:"Fecha"`
	ListaEESSPrecio   []GasStation `json:"ListaEESSPrecio"`
	Nota              string       `json:"Nota"`
	ResultadoConsulta string       `json:"ResultadoConsulta"`
}

// GasStation represents a single fuel station and its price information.
type GasStation struct {
	CP                 string `json:"C.P."`
	Direccion          string `json:"Dirección"`
	Horario            string `json:"Horario"`
	Latitud            string `json:"Latitud"`
	Localidad          string `json:"Localidad"`
	Longitud           string `json:"Longitud (WGS84)"`
	Municipio          string `json:"Municipio"`
	PrecioGasoleoA     string `json:"Precio Gasoleo A"`
	PrecioGasolina95E5 string `json:"Precio Gasolina 95 E5"`
	Provincia          string `json:"Provincia"`
	Rotulo             string `json:"Rótulo"`
	IDEESS             string `json:"IDEESS"`
}

// RetailerStation is a forecourt as published by UK retailer open-data feeds.
// Retailers differ slightly, so every field is optional.
type RetailerStation struct {
	SiteID   string             `json:"site_id,omitempty"`
	Brand    string             `json:"brand,omitempty"`
	Name     string             `json:"name,omitempty"`
	Address  string             `json:"address,omitempty"`
	Postcode string             `json:"postcode,omitempty"`
	Location *RetailerLocation  `json:"location,omitempty"`
	Prices   map[string]float64 `json:"prices,omitempty"` // pence per litre
}

type RetailerLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName falls back to the brand when the site has no name.
func (s *RetailerStation) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Brand != "" {
		return s.Brand
	}
	return "Fuel Station"
}

// ChargePoint is a POI returned by the OpenChargeMap v3 API.
type ChargePoint struct {
	ID          int64         `json:"ID"`
	UUID        string        `json:"UUID"`
	AddressInfo *AddressInfo  `json:"AddressInfo"`
	Connections []Connection  `json:"Connections"`
	UsageCost   string        `json:"UsageCost"`
	Operator    *OperatorInfo `json:"OperatorInfo,omitempty"`
}

type AddressInfo struct {
	Title        string   `json:"Title"`
	AddressLine1 string   `json:"AddressLine1"`
	Town         string   `json:"Town"`
	Latitude     *float64 `json:"Latitude"`
	Longitude    *float64 `json:"Longitude"`
	Distance     *float64 `json:"Distance"`
}

type Connection struct {
	ConnectionType *ConnectionType `json:"ConnectionType"`
	PowerKW        *float64        `json:"PowerKW"`
	Quantity       *int            `json:"Quantity"`
}

type ConnectionType struct {
	ID    int    `json:"ID"`
	Title string `json:"Title"`
}

type OperatorInfo struct {
	Title string `json:"Title"`
}
