package domain

// Review is a single client review attached to a psychologist profile.
// Reviews have no lifecycle of their own; they live and die with the profile.
type Review struct {
	Reviewer string  `json:"reviewer"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
}

// Psychologist is a public catalog profile. Profiles are read-only inside
// this service; the ID is assigned at ingestion and never changes.
type Psychologist struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	AvatarURL           string   `json:"avatar_url"`
	Experience          string   `json:"experience"`
	Reviews             []Review `json:"reviews"`
	PricePerHour        float64  `json:"price_per_hour"`
	Rating              float64  `json:"rating"`
	License             string   `json:"license"`
	Specialization      string   `json:"specialization"`
	InitialConsultation string   `json:"initial_consultation"`
	About               string   `json:"about"`
}
