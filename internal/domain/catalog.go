package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultSeed is the seed front-ends pre-fill so repeated runs are reproducible.
const DefaultSeed uint32 = 123456789

// Model describes a remote model and the durations it accepts.
type Model struct {
	Name             string `json:"name"`
	Durations        []int  `json:"durations"`
	CreditsPerSecond int    `json:"credits_per_second"`
	ImageRequired    bool   `json:"image_required"`
	Note             string `json:"note,omitempty"`
}

// SupportsDuration reports whether seconds is one of the model's durations.
func (m Model) SupportsDuration(seconds int) bool {
	for _, d := range m.Durations {
		if d == seconds {
			return true
		}
	}
	return false
}

// DefaultDuration is the longest supported duration.
func (m Model) DefaultDuration() int {
	if len(m.Durations) == 0 {
		return 0
	}
	return m.Durations[len(m.Durations)-1]
}

// EstimatedCredits returns the cost hint for a clip of the given length.
func (m Model) EstimatedCredits(seconds int) int {
	return m.CreditsPerSecond * seconds
}

// Catalog is the set of models a deployment exposes.
type Catalog struct {
	models map[string]Model
}

// NewCatalog indexes models by name.
func NewCatalog(models ...Model) *Catalog {
	c := &Catalog{models: make(map[string]Model, len(models))}
	for _, m := range models {
		c.models[m.Name] = m
	}
	return c
}

// DefaultCatalog returns the models known to work with image_to_video.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Model{Name: "gen4_turbo", Durations: []int{5, 10}, CreditsPerSecond: 5, ImageRequired: true, Note: "fast + cheapest"},
		Model{Name: "gen4_aleph", Durations: []int{5, 10}, CreditsPerSecond: 15, ImageRequired: true, Note: "sharper than turbo"},
		Model{Name: "veo3", Durations: []int{4, 6, 8}, CreditsPerSecond: 40, Note: "higher quality"},
		Model{Name: "veo3.1", Durations: []int{4, 6, 8}, CreditsPerSecond: 40, Note: "newer fidelity"},
		Model{Name: "veo3.1_fast", Durations: []int{4, 6, 8}, CreditsPerSecond: 20, Note: "balanced speed/quality"},
	)
}

// Lookup returns the named model.
func (c *Catalog) Lookup(name string) (Model, error) {
	m, ok := c.models[strings.TrimSpace(name)]
	if !ok {
		return Model{}, &ValidationError{Field: "model", Reason: fmt.Sprintf("%q is not one of %s", name, strings.Join(c.Names(), ", "))}
	}
	return m, nil
}

// Names returns model names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns all models sorted by name.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.models))
	for _, name := range c.Names() {
		out = append(out, c.models[name])
	}
	return out
}

// ValidateDuration rejects durations the model does not support.
func ValidateDuration(m Model, seconds int) error {
	if m.SupportsDuration(seconds) {
		return nil
	}
	allowed := make([]string, 0, len(m.Durations))
	for _, d := range m.Durations {
		allowed = append(allowed, strconv.Itoa(d))
	}
	return &ValidationError{
		Field:  "duration",
		Reason: fmt.Sprintf("%ds is not supported by %s (allowed: %s)", seconds, m.Name, strings.Join(allowed, ", ")),
	}
}

// ArtifactFileName is the download name for a finished clip, e.g. gen4_turbo_1280x720_10s.mp4.
func ArtifactFileName(model string, ratio Ratio, duration int) string {
	return fmt.Sprintf("%s_%dx%d_%ds.mp4", model, ratio.Width, ratio.Height, duration)
}
