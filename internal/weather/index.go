package weather

import "strings"

// elementAliases folds the element names used across CWA datasets into the
// canonical short names. Newer datasets publish Chinese element names.
var elementAliases = map[string]string{
	"PoP":      ElementPrecipProb,
	"天氣現象":     ElementCondition,
	"最低溫度":     ElementMinTemp,
	"最高溫度":     ElementMaxTemp,
	"12小時降雨機率": ElementPrecipProb,
	"相對濕度":     ElementHumidity,
	"平均相對濕度":   ElementHumidity,
	"風速":       ElementWindSpeed,
	"風向":       ElementWindDirection,
	"舒適度指數":    ElementComfort,
	"最大舒適度指數":  ElementComfort,
}

// CanonicalElementName maps an upstream element name to its canonical form.
// Unknown names are returned trimmed but otherwise unchanged.
func CanonicalElementName(name string) string {
	name = strings.TrimSpace(name)
	if canonical, ok := elementAliases[name]; ok {
		return canonical
	}
	return name
}

// ElementIndex gives name-based access to the elements of one feed.
type ElementIndex struct {
	elements map[string]RawElement
}

// NewElementIndex indexes a feed. A nil feed yields an empty index. When two
// elements share a canonical name the first one wins.
func NewElementIndex(feed *Feed) ElementIndex {
	idx := ElementIndex{elements: make(map[string]RawElement)}
	if feed == nil {
		return idx
	}
	for _, el := range feed.Elements {
		name := CanonicalElementName(el.Name)
		if name == "" {
			continue
		}
		if _, exists := idx.elements[name]; exists {
			continue
		}
		el.Name = name
		idx.elements[name] = el
	}
	return idx
}

// Lookup returns the element with the given canonical name.
func (i ElementIndex) Lookup(name string) (RawElement, bool) {
	el, ok := i.elements[name]
	return el, ok
}

// Len reports the number of indexed elements.
func (i ElementIndex) Len() int {
	return len(i.elements)
}

// valueAt returns the first value of slot idx of the named element. The
// second result is false when the element is absent, shorter than idx, or the
// slot carries no values.
func (i ElementIndex) valueAt(name string, idx int) (string, bool) {
	el, ok := i.elements[name]
	if !ok || idx < 0 || idx >= len(el.TimeSlots) {
		return "", false
	}
	return el.TimeSlots[idx].First()
}
