package imageprep

import "videogen/internal/domain"

// AssemblePromptImage orders encoded images for submission. The first image
// is the leading anchor; every later image is a trailing reference.
func AssemblePromptImage(images []domain.EncodedImage) domain.PromptImages {
	if len(images) == 0 {
		return nil
	}
	out := make(domain.PromptImages, 0, len(images))
	for i, img := range images {
		pos := domain.PositionLast
		if i == 0 {
			pos = domain.PositionFirst
		}
		out = append(out, domain.PromptImage{URI: img.URI(), Position: pos})
	}
	return out
}
