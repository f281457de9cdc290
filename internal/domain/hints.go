package domain

import "strings"

// HintCode names a likely cause of a rejected submission.
type HintCode string

const (
	HintNone        HintCode = ""
	HintCredential  HintCode = "credential"
	HintRatio       HintCode = "ratio"
	HintQuota       HintCode = "quota"
	HintDuration    HintCode = "duration"
	HintPayloadSize HintCode = "payload_size"
)

var hintMessages = map[string]map[HintCode]string{
	"en": {
		HintCredential:  "The API key was rejected. Check RUNWAY_API_KEY or the stored runway token.",
		HintRatio:       "The model rejected the aspect ratio. Pick one of the allowed ratios for this model.",
		HintQuota:       "The account is out of credits. Top up or choose a cheaper model or shorter duration.",
		HintDuration:    "The model rejected the duration. Use one of the durations listed in the catalog.",
		HintPayloadSize: "The reference images are too large. Use fewer images, JPEG output or a smaller max dimension.",
	},
	"id": {
		HintCredential:  "API key ditolak. Periksa RUNWAY_API_KEY atau token runway yang tersimpan.",
		HintRatio:       "Model menolak rasio aspek. Pilih salah satu rasio yang diizinkan untuk model ini.",
		HintQuota:       "Kredit akun habis. Isi ulang atau pilih model yang lebih murah atau durasi lebih pendek.",
		HintDuration:    "Model menolak durasi. Gunakan salah satu durasi yang tercantum di katalog.",
		HintPayloadSize: "Gambar referensi terlalu besar. Kurangi jumlah gambar, gunakan JPEG atau dimensi maksimum yang lebih kecil.",
	},
}

// HintFor guesses why a submission was rejected from its status code and body.
func HintFor(statusCode int, body string) HintCode {
	lower := strings.ToLower(body)
	switch {
	case statusCode == 401 || strings.Contains(lower, "unauthorized"):
		return HintCredential
	case strings.Contains(lower, "ratio"):
		return HintRatio
	case strings.Contains(lower, "credit"):
		return HintQuota
	case strings.Contains(lower, "duration"):
		return HintDuration
	case statusCode == 413 || strings.Contains(lower, "too large") || strings.Contains(lower, "size"):
		return HintPayloadSize
	}
	return HintNone
}

// Message renders the hint in locale, falling back to English.
func (h HintCode) Message(locale string) string {
	if h == HintNone {
		return ""
	}
	if msgs, ok := hintMessages[locale]; ok {
		if msg, ok := msgs[h]; ok {
			return msg
		}
	}
	return hintMessages["en"][h]
}
