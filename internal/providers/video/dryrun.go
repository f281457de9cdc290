package video

import (
	"context"
	"encoding/json"

	"videogen/internal/domain"
	"videogen/internal/imageprep"
)

// DryRun validates and encodes like RunwayGenerator but never touches the
// network. When Output is set it receives the JSON body that would be submitted.
type DryRun struct {
	catalog *domain.Catalog
	encoder *imageprep.Encoder
}

func NewDryRun(catalog *domain.Catalog, encoder *imageprep.Encoder) *DryRun {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	if encoder == nil {
		encoder = imageprep.NewEncoder(imageprep.DefaultPolicy(), nil)
	}
	return &DryRun{catalog: catalog, encoder: encoder}
}

func (d *DryRun) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	encoder := d.encoder
	if req.Policy != nil {
		encoder = imageprep.NewEncoder(*req.Policy, nil)
	}
	jobReq, _, err := prepare(d.catalog, encoder, req)
	if err != nil {
		return nil, err
	}
	var n int64
	if req.Output != nil {
		body, err := json.MarshalIndent(dryRunBody(jobReq), "", "  ")
		if err != nil {
			return nil, err
		}
		written, err := req.Output.Write(body)
		if err != nil {
			return nil, err
		}
		n = int64(written)
	}
	return &Asset{
		Format:   "application/json",
		Length:   jobReq.Duration,
		Bytes:    n,
		FileName: domain.ArtifactFileName(jobReq.Model, jobReq.Ratio, jobReq.Duration),
	}, nil
}

func dryRunBody(req domain.JobRequest) map[string]any {
	body := map[string]any{
		"endpoint": "/v1/" + string(req.Mode),
		"model":    req.Model,
		"ratio":    req.Ratio.String(),
		"duration": req.Duration,
	}
	if req.PromptText != "" {
		body["promptText"] = req.PromptText
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}
	if len(req.Images) > 0 {
		body["promptImage"] = req.Images
	}
	return body
}

var _ Generator = (*DryRun)(nil)
