package catalog

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/stanislavNemch/psychologists-services/internal/domain"
)

// rawProfile is the loosely shaped record found in a keyed catalog export.
// Pointer fields distinguish "absent" from zero values.
type rawProfile struct {
	Name                string          `json:"name"`
	AvatarURL           string          `json:"avatar_url"`
	Experience          string          `json:"experience"`
	Reviews             []domain.Review `json:"reviews"`
	PricePerHour        *float64        `json:"price_per_hour"`
	Rating              float64         `json:"rating"`
	License             string          `json:"license"`
	Specialization      string          `json:"specialization"`
	InitialConsultation string          `json:"initial_consultation"`
	About               string          `json:"about"`
}

// ParseSnapshot converts a keyed JSON export into catalog profiles. Each key
// becomes the profile ID. Records without a name or a usable price are
// skipped silently: the export root is a mixed namespace and non-profile
// entries are expected there, not an error.
func ParseSnapshot(data []byte) ([]domain.Psychologist, error) {
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	profiles := make([]domain.Psychologist, 0, len(records))
	for _, key := range keys {
		var raw rawProfile
		if err := json.Unmarshal(records[key], &raw); err != nil {
			continue
		}
		if !raw.valid() {
			continue
		}
		profiles = append(profiles, domain.Psychologist{
			ID:                  key,
			Name:                raw.Name,
			AvatarURL:           raw.AvatarURL,
			Experience:          raw.Experience,
			Reviews:             raw.Reviews,
			PricePerHour:        *raw.PricePerHour,
			Rating:              raw.Rating,
			License:             raw.License,
			Specialization:      raw.Specialization,
			InitialConsultation: raw.InitialConsultation,
			About:               raw.About,
		})
	}
	return profiles, nil
}

func (r rawProfile) valid() bool {
	if strings.TrimSpace(r.Name) == "" {
		return false
	}
	// The source treated a zero price the same as a missing one.
	return r.PricePerHour != nil && *r.PricePerHour != 0
}
