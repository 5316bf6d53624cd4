package model

// ColorBand is the driver-facing green/amber/red summary of a station.
type ColorBand string

const (
	BandGreen ColorBand = "green"
	BandAmber ColorBand = "amber"
	BandRed   ColorBand = "red"
)

// StationCard summarises one candidate station inside a plan.
type StationCard struct {
	StationID     string    `json:"station_id"`
	Name          string    `json:"name"`
	DistanceKm    float64   `json:"distance_km"`
	ConnectorID   string    `json:"connector_id,omitempty"`
	Badge         string    `json:"trust_badge"`
	P50Wait       float64   `json:"p50_wait"`
	P90Wait       float64   `json:"p90_wait"`
	ExpectedStart float64   `json:"expected_start_min"`
	FreeCount     int       `json:"free"`
	Band          ColorBand `json:"band"`
}

// PartnerOffer is an amenity near a station for drivers with a wait.
// Offers are purely additive and never influence ranking.
type PartnerOffer struct {
	PartnerID   string  `json:"partner_id"`
	Name        string  `json:"name"`
	Kind        string  `json:"type"`
	DistanceM   float64 `json:"distance_m"`
	DurationMin float64 `json:"avg_duration_min"`
}

// PlanAction is the single recommended action of a plan. It is a
// closed sum over Reserve, Quarantine, SetProfile and None so that
// illegal field combinations cannot be represented.
type PlanAction interface {
	Kind() string
}

// ReserveAction commits a hold on the chosen connector.
type ReserveAction struct {
	ReservationID string  `json:"reservation_id"`
	StationID     string  `json:"station_id"`
	ConnectorID   string  `json:"connector_id"`
	PromisedMin   float64 `json:"promised_start_min"`
}

func (ReserveAction) Kind() string { return "RESERVE" }

// QuarantineAction recommends pulling a suspicious connector from
// rotation instead of routing the driver to it.
type QuarantineAction struct {
	ConnectorID string  `json:"connector_id"`
	Score       float64 `json:"score"`
	Basis       string  `json:"basis"`
}

func (QuarantineAction) Kind() string { return "QUARANTINE" }

// SetProfileAction proposes an alternate charging profile when no
// connector meets the trust bar at the requested tier.
type SetProfileAction struct {
	StationID   string  `json:"station_id"`
	ConnectorID string  `json:"connector_id"`
	PowerKW     float64 `json:"kw"`
}

func (SetProfileAction) Kind() string { return "SET_PROFILE" }

// NoneAction carries the rationale for recommending nothing.
type NoneAction struct {
	Rationale string `json:"rationale"`
}

func (NoneAction) Kind() string { return "NONE" }

// Plan is the request-scoped response for a driver query. It is
// assembled fresh per request and never persisted.
type Plan struct {
	Cards            []StationCard  `json:"cards"`
	Action           PlanAction     `json:"action_detail,omitempty"`
	ActionKind       string         `json:"action"`
	Rationale        string         `json:"rationale,omitempty"`
	SafeWaitPartners []PartnerOffer `json:"safe_wait_partners,omitempty"`
}
