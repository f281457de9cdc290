package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"videogen/internal/domain"
)

// ImageRef points at a stored reference image.
type ImageRef struct {
	StorageKey string `json:"storage_key"`
	MIME       string `json:"mime"`
	Filename   string `json:"filename,omitempty"`
}

// PolicyConfig overrides the deployment's image policy for one job.
type PolicyConfig struct {
	PadColor string `json:"pad_color,omitempty"`
	Format   string `json:"format,omitempty"`
}

// VideoSpecJSON is the persisted form of a queued generation request.
type VideoSpecJSON struct {
	Version  string       `json:"version"`
	Model    string       `json:"model"`
	Prompt   string       `json:"prompt"`
	Ratio    string       `json:"ratio"`
	Duration int          `json:"duration"`
	Seed     *uint32      `json:"seed,omitempty"`
	Images   []ImageRef   `json:"images"`
	Policy   PolicyConfig `json:"policy"`
	Locale   string       `json:"locale"`
}

const (
	// DefaultSpecVersion is the schema version written for new jobs.
	DefaultSpecVersion = "2024-11"
	DefaultModel       = "gen4_turbo"
	DefaultRatio       = "1280:720"
	DefaultLocale      = "en"
)

// Normalize trims user input and fills defaults. Duration defaults to the
// model's longest clip when the model is known.
func (s *VideoSpecJSON) Normalize(preferredLocale string, catalog *domain.Catalog) {
	if s == nil {
		return
	}
	s.Model = strings.TrimSpace(s.Model)
	s.Prompt = strings.TrimSpace(s.Prompt)
	s.Ratio = strings.TrimSpace(s.Ratio)
	if s.Version == "" {
		s.Version = DefaultSpecVersion
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Ratio == "" {
		s.Ratio = DefaultRatio
	}
	if s.Duration <= 0 && catalog != nil {
		if m, err := catalog.Lookup(s.Model); err == nil {
			s.Duration = m.DefaultDuration()
		}
	}
	if s.Locale == "" {
		if preferredLocale != "" {
			s.Locale = preferredLocale
		} else {
			s.Locale = DefaultLocale
		}
	}
	if s.Images == nil {
		s.Images = []ImageRef{}
	}
}

// JobSpec converts the persisted form into the domain request.
func (s VideoSpecJSON) JobSpec() (domain.JobSpec, error) {
	ratio, err := domain.ParseRatio(s.Ratio)
	if err != nil {
		return domain.JobSpec{}, err
	}
	return domain.JobSpec{
		Model:    s.Model,
		Prompt:   s.Prompt,
		Ratio:    ratio,
		Duration: s.Duration,
		Seed:     s.Seed,
	}, nil
}

// Validate checks the spec against catalog before persistence.
func (s VideoSpecJSON) Validate(catalog *domain.Catalog) (domain.Model, error) {
	spec, err := s.JobSpec()
	if err != nil {
		return domain.Model{}, err
	}
	for i, img := range s.Images {
		if strings.TrimSpace(img.StorageKey) == "" {
			return domain.Model{}, &domain.ValidationError{Field: "images", Reason: fmt.Sprintf("image %d has no storage key", i+1)}
		}
	}
	return catalog.Validate(spec, len(s.Images))
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
