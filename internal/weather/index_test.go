package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalElementName(t *testing.T) {
	assert.Equal(t, ElementPrecipProb, CanonicalElementName("PoP"))
	assert.Equal(t, ElementCondition, CanonicalElementName(" 天氣現象 "))
	assert.Equal(t, ElementComfort, CanonicalElementName("最大舒適度指數"))
	assert.Equal(t, "MinT", CanonicalElementName("MinT"))
	assert.Equal(t, "UVI", CanonicalElementName("UVI"))
}

func TestElementIndex(t *testing.T) {
	feed := &Feed{Elements: []RawElement{
		{Name: "Wx", TimeSlots: []TimeSlot{{Values: []Value{{Value: "晴"}}}}},
		{Name: "天氣現象", TimeSlots: []TimeSlot{{Values: []Value{{Value: "雨"}}}}},
		{Name: "MinT", TimeSlots: []TimeSlot{{}, {Values: []Value{{Value: "20"}}}}},
		{Name: ""},
	}}

	idx := NewElementIndex(feed)

	assert.Equal(t, 2, idx.Len())

	wx, ok := idx.Lookup(ElementCondition)
	assert.True(t, ok)
	v, _ := wx.TimeSlots[0].First()
	assert.Equal(t, "晴", v, "first element with a name wins")

	_, ok = idx.Lookup(ElementHumidity)
	assert.False(t, ok)

	_, ok = idx.valueAt(ElementMinTemp, 0)
	assert.False(t, ok, "slot without values")
	v, ok = idx.valueAt(ElementMinTemp, 1)
	assert.True(t, ok)
	assert.Equal(t, "20", v)
	_, ok = idx.valueAt(ElementMinTemp, 2)
	assert.False(t, ok, "index past the series")
	_, ok = idx.valueAt(ElementHumidity, 0)
	assert.False(t, ok, "absent element")
}

func TestElementIndex_NilFeed(t *testing.T) {
	idx := NewElementIndex(nil)
	assert.Zero(t, idx.Len())
	_, ok := idx.Lookup(ElementCondition)
	assert.False(t, ok)
}
