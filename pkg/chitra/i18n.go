package chitra

// Languages the gallery can be rendered in.
const (
	English = "en"
	Nepali  = "ne"
)

var labels = map[string]map[string]string{
	English: {
		"albums":      "Albums",
		"recent":      "Recent",
		"mapped":      "Mapped",
		"photos":      "photos",
		"location":    "Location",
		"coordinates": "Coordinates",
		"submitted":   "Submitted",
		"empty":       "No photos yet.",
		"home":        "Home",
		"tags":        "Tags",
	},
	Nepali: {
		"albums":      "एल्बमहरू",
		"recent":      "हालैका",
		"mapped":      "नक्सामा",
		"photos":      "तस्बिरहरू",
		"location":    "स्थान",
		"coordinates": "निर्देशांक",
		"submitted":   "पेश गरिएको",
		"empty":       "अहिलेसम्म कुनै तस्बिर छैन।",
		"home":        "गृहपृष्ठ",
		"tags":        "ट्यागहरू",
	},
}

// translate returns the label for key in lang, falling back to English and
// then to the key itself.
func translate(lang, key string) string {
	if l, ok := labels[lang][key]; ok {
		return l
	}
	if l, ok := labels[English][key]; ok {
		return l
	}
	return key
}
