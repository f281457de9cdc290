package handlers

import (
	"net/http"

	"videogen/internal/domain"
)

type catalogModel struct {
	domain.Model
	EstimatedCredits map[int]int `json:"estimated_credits"`
}

type catalogResponse struct {
	Models      []catalogModel `json:"models"`
	Ratios      []string       `json:"ratios"`
	DefaultSeed uint32         `json:"default_seed"`
	MaxImages   int            `json:"max_images"`
	MaxPrompt   int            `json:"max_prompt_chars"`
}

// ModelsCatalog lists the models, durations and ratios the API accepts.
func (a *App) ModelsCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{
		DefaultSeed: domain.DefaultSeed,
		MaxImages:   domain.MaxReferenceImages,
		MaxPrompt:   domain.MaxPromptRunes,
	}
	for _, m := range a.Catalog.Models() {
		credits := make(map[int]int, len(m.Durations))
		for _, d := range m.Durations {
			credits[d] = m.EstimatedCredits(d)
		}
		resp.Models = append(resp.Models, catalogModel{Model: m, EstimatedCredits: credits})
	}
	for _, ratio := range domain.AllowedRatios {
		resp.Ratios = append(resp.Ratios, ratio.String())
	}
	a.json(w, http.StatusOK, resp)
}
