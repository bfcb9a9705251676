package weather

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taipei = time.FixedZone("CST", 8*60*60)

// newTestAggregator returns an aggregator whose "now" is 2024-06-01 10:00 in Taipei.
func newTestAggregator(opts ...AggregatorOption) *Aggregator {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 10, 0, 0, 0, taipei))
	base := []AggregatorOption{WithClock(clock), WithLocation(taipei)}
	return NewAggregator(append(base, opts...)...)
}

func element(name string, starts []string, values ...string) RawElement {
	el := RawElement{Name: name}
	for i, v := range values {
		start := ""
		if i < len(starts) {
			start = starts[i]
		}
		el.TimeSlots = append(el.TimeSlots, TimeSlot{StartTime: start, Values: []Value{{Value: v}}})
	}
	return el
}

// twoSlotsPerDay returns slot start times for n days starting 2024-06-01, at
// 06:00 and 18:00 local time.
func twoSlotsPerDay(n int) []string {
	var starts []string
	for d := 0; d < n; d++ {
		day := time.Date(2024, 6, 1+d, 0, 0, 0, 0, taipei)
		starts = append(starts,
			day.Add(6*time.Hour).Format(time.RFC3339),
			day.Add(18*time.Hour).Format(time.RFC3339),
		)
	}
	return starts
}

func date(day int) time.Time {
	return time.Date(2024, 6, day, 0, 0, 0, 0, taipei)
}

func TestAggregate_EndToEndThreeDays(t *testing.T) {
	starts := twoSlotsPerDay(3)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴", "多雲", "陰", "陰", "短暫雨", "短暫雨"),
		element(ElementMinTemp, starts, "18", "19", "20", "21", "22", "23"),
		element(ElementMaxTemp, starts, "26", "27", "28", "29", "30", "31"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 3)
	want := []struct{ min, max float64 }{{18, 27}, {20, 29}, {22, 31}}
	for i, d := range res.Days {
		assert.Equal(t, date(1+i), d.Date, "day %d", i)
		assert.Equal(t, want[i].min, d.MinTemp, "day %d min", i)
		assert.Equal(t, want[i].max, d.MaxTemp, "day %d max", i)
		assert.Zero(t, d.MaxPrecipProbability)
		assert.Equal(t, "N/A", d.WindSpeed)
		assert.Equal(t, "N/A", d.ComfortIndex)
		assert.Equal(t, 2, d.Slots)
	}
	assert.Equal(t, "晴", res.Days[0].Condition)
	assert.Equal(t, "陰", res.Days[1].Condition)

	assert.ElementsMatch(t,
		[]string{ElementPrecipProb, ElementComfort, ElementHumidity, ElementWindSpeed},
		res.Diagnostics.MissingElements)
	assert.Equal(t, 6*4, res.Diagnostics.DefaultedValues)
	assert.Zero(t, res.Diagnostics.DroppedDays)
}

func TestAggregate_NoAnchor(t *testing.T) {
	tests := []struct {
		name string
		feed *Feed
	}{
		{name: "nil feed", feed: nil},
		{name: "empty feed", feed: &Feed{}},
		{name: "no Wx", feed: &Feed{Elements: []RawElement{
			element(ElementMinTemp, twoSlotsPerDay(1), "20", "21"),
		}}},
		{name: "empty Wx", feed: &Feed{Elements: []RawElement{{Name: ElementCondition}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestAggregator().Aggregate(tt.feed)
			assert.NotNil(t, res.Days)
			assert.Empty(t, res.Days)
			assert.True(t, res.Empty())
		})
	}
}

func TestAggregate_ReportsMissingAnchor(t *testing.T) {
	feed := &Feed{Elements: []RawElement{
		element(ElementMinTemp, twoSlotsPerDay(1), "20", "21"),
	}}

	res := newTestAggregator().Aggregate(feed)

	assert.Contains(t, res.Diagnostics.MissingElements, ElementCondition)
	assert.NotContains(t, res.Diagnostics.MissingElements, ElementMinTemp)
}

func TestAggregate_CapsAtMaxDaysInAscendingOrder(t *testing.T) {
	starts := twoSlotsPerDay(5)
	values := []string{"晴", "晴", "雨", "雨", "陰", "陰", "雪", "雪", "雲", "雲"}

	// Reverse the slots to make sure ordering comes from the dates.
	wx := element(ElementCondition, starts, values...)
	for i, j := 0, len(wx.TimeSlots)-1; i < j; i, j = i+1, j-1 {
		wx.TimeSlots[i], wx.TimeSlots[j] = wx.TimeSlots[j], wx.TimeSlots[i]
	}

	res := newTestAggregator().Aggregate(&Feed{Elements: []RawElement{wx}})

	require.Len(t, res.Days, 3)
	for i := 1; i < len(res.Days); i++ {
		assert.True(t, res.Days[i-1].Date.Before(res.Days[i].Date))
	}
	assert.Equal(t, date(1), res.Days[0].Date)
	assert.Equal(t, date(3), res.Days[2].Date)
	assert.Equal(t, 2, res.Diagnostics.DroppedDays)
}

func TestAggregate_WithMaxDays(t *testing.T) {
	starts := twoSlotsPerDay(5)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴", "晴", "晴", "晴", "晴", "晴", "晴", "晴", "晴", "晴"),
	}}

	res := newTestAggregator(WithMaxDays(5)).Aggregate(feed)
	assert.Len(t, res.Days, 5)

	res = newTestAggregator(WithMaxDays(0)).Aggregate(feed)
	assert.Len(t, res.Days, DefaultMaxDays)
}

func TestAggregate_UnparseableValuesExcluded(t *testing.T) {
	starts := []string{"2024-06-01 06:00:00", "2024-06-01 12:00:00", "2024-06-01 18:00:00"}
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "多雲", "多雲", "多雲"),
		element(ElementMinTemp, starts, "22", "N/A", "19"),
		element(ElementMaxTemp, starts, "-", "30", "29"),
		element(ElementPrecipProb, starts, "N/A", " ", "-"),
		element(ElementHumidity, starts, "70", "75", "x"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 1)
	d := res.Days[0]
	assert.Equal(t, 19.0, d.MinTemp)
	assert.Equal(t, 30.0, d.MaxTemp)
	assert.Equal(t, 0.0, d.MaxPrecipProbability)
	assert.Equal(t, 73.0, d.AvgHumidity) // mean of 70 and 75, rounded
	assert.Equal(t, 5, res.Diagnostics.UnparsedValues)
}

func TestAggregate_MisalignedSeries(t *testing.T) {
	starts := twoSlotsPerDay(2)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴", "晴", "雨", "雨"),
		element(ElementMinTemp, starts[:2], "15", "16"),
	}}

	var res Result
	require.NotPanics(t, func() {
		res = newTestAggregator().Aggregate(feed)
	})

	require.Len(t, res.Days, 2)
	assert.Equal(t, 15.0, res.Days[0].MinTemp)
	assert.Equal(t, DefaultValues.MinTemp, res.Days[1].MinTemp)
}

func TestAggregate_FirstSlotWins(t *testing.T) {
	starts := twoSlotsPerDay(1)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴時多雲", "陣雨"),
		element(ElementComfort, starts, "舒適", "悶熱"),
		element(ElementWindSpeed, starts, "3", "6"),
		element(ElementPrecipProb, starts, "10", "60"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 1)
	d := res.Days[0]
	assert.Equal(t, "晴時多雲", d.Condition)
	assert.Equal(t, "舒適", d.ComfortIndex)
	assert.Equal(t, "3", d.WindSpeed)
	assert.Equal(t, 60.0, d.MaxPrecipProbability)
}

func TestAggregate_RelativeDays(t *testing.T) {
	// The first slot starts the day before "now".
	starts := []string{
		"2024-05-31T18:00:00+08:00",
		"2024-06-01T06:00:00+08:00",
		"2024-06-02T06:00:00+08:00",
	}
	feed := &Feed{Elements: []RawElement{element(ElementCondition, starts, "晴", "晴", "晴")}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 3)
	assert.Equal(t, RelativeDay(-1), res.Days[0].Relative)
	assert.Equal(t, DayOther, res.Days[0].Relative.Kind())
	assert.Equal(t, DayToday, res.Days[1].Relative.Kind())
	assert.Equal(t, DayTomorrow, res.Days[2].Relative.Kind())
	assert.Equal(t, time.Saturday, res.Days[1].Weekday)
}

func TestAggregate_BucketsInFeedTimezone(t *testing.T) {
	// 23:00 UTC on May 31 is 07:00 on June 1 in Taipei.
	starts := []string{"2024-05-31T23:00:00Z", "2024-06-01T09:00:00Z"}
	feed := &Feed{Elements: []RawElement{element(ElementCondition, starts, "晴", "晴")}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 1)
	assert.Equal(t, date(1), res.Days[0].Date)
	assert.Equal(t, 2, res.Days[0].Slots)
}

func TestAggregate_SkipsUndatedSlots(t *testing.T) {
	starts := []string{"not a time", "", "2024-06-01T06:00:00+08:00"}
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "雨", "雨", "晴"),
		element(ElementMinTemp, starts, "5", "5", "21"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 1)
	assert.Equal(t, "晴", res.Days[0].Condition)
	assert.Equal(t, 21.0, res.Days[0].MinTemp)
	assert.Equal(t, 2, res.Diagnostics.UndatedSlots)
}

func TestAggregate_WithDefaults(t *testing.T) {
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, twoSlotsPerDay(1), "", "晴"),
	}}
	defaults := Defaults{Condition: "unknown", MinTemp: -99, MaxTemp: 99, Humidity: 50, WindSpeed: "-", Comfort: "-"}

	res := newTestAggregator(WithDefaults(defaults)).Aggregate(feed)

	require.Len(t, res.Days, 1)
	d := res.Days[0]
	assert.Equal(t, "unknown", d.Condition)
	assert.Equal(t, -99.0, d.MinTemp)
	assert.Equal(t, 99.0, d.MaxTemp)
	assert.Equal(t, 50.0, d.AvgHumidity)
	assert.Equal(t, "-", d.WindSpeed)
}

func TestAggregate_Idempotent(t *testing.T) {
	starts := twoSlotsPerDay(3)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴", "多雲", "陰", "陰", "雨", "雨"),
		element(ElementMinTemp, starts, "18", "N/A", "20", "21", "22", "23"),
		element(ElementHumidity, starts, "80", "85", "90"),
	}}
	agg := newTestAggregator()

	first := agg.Aggregate(feed)
	second := agg.Aggregate(feed)

	assert.Equal(t, first, second)
}

func TestAggregate_ElementAliases(t *testing.T) {
	starts := twoSlotsPerDay(1)
	feed := &Feed{Elements: []RawElement{
		element("天氣現象", starts, "晴", "晴"),
		element("PoP", starts, "20", "40"),
		element("最低溫度", starts, "24", "23"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 1)
	assert.Equal(t, 40.0, res.Days[0].MaxPrecipProbability)
	assert.Equal(t, 23.0, res.Days[0].MinTemp)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"22", 22, true},
		{" 18.5 ", 18.5, true},
		{"-3", -3, true},
		{"N/A", 0, false},
		{"-", 0, false},
		{"", 0, false},
		{"+.5", 0.5, true},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1_000", 0, false},
		{"1e2", 0, false},
		{"0x1p4", 0, false},
		{"1.2.3", 0, false},
		{".", 0, false},
		{"+", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestAggregate_CurrentReadsFirstDatedSlot(t *testing.T) {
	starts := append([]string{"not a time"}, twoSlotsPerDay(1)...)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "雪", "多雲", "雨"),
		element(ElementMinTemp, starts, "1", "24", "21"),
		element(ElementMaxTemp, starts, "2", "N/A", "30"),
		element(ElementPrecipProb, starts, "90", "20", "70"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.NotNil(t, res.Current)
	c := res.Current
	assert.Equal(t, time.Date(2024, 6, 1, 6, 0, 0, 0, taipei), c.StartTime)
	assert.Equal(t, "多雲", c.Condition)
	assert.Equal(t, 20.0, c.PrecipProbability)
	assert.Equal(t, 24.0, c.MinTemp)
	assert.True(t, c.HasMinTemp)
	assert.Equal(t, DefaultValues.MaxTemp, c.MaxTemp)
	assert.False(t, c.HasMaxTemp)

	// The day reduces over both slots.
	require.Len(t, res.Days, 1)
	assert.Equal(t, 21.0, res.Days[0].MinTemp)
	assert.Equal(t, 1, res.Diagnostics.UndatedSlots)
}

func TestAggregate_CurrentDefaults(t *testing.T) {
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, twoSlotsPerDay(1), " ", "晴"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.NotNil(t, res.Current)
	assert.Equal(t, DefaultValues.Condition, res.Current.Condition)
	assert.Equal(t, 0.0, res.Current.PrecipProbability)
	assert.False(t, res.Current.HasMinTemp)
	assert.False(t, res.Current.HasMaxTemp)
	assert.True(t, res.Current.EndTime.IsZero())

	assert.Nil(t, newTestAggregator().Aggregate(&Feed{}).Current)
	assert.Nil(t, newTestAggregator().Aggregate(&Feed{Elements: []RawElement{
		element(ElementCondition, []string{"bogus"}, "晴"),
	}}).Current)
}

func TestAggregate_TemperatureFlags(t *testing.T) {
	starts := twoSlotsPerDay(2)
	feed := &Feed{Elements: []RawElement{
		element(ElementCondition, starts, "晴", "晴", "雨", "雨"),
		element(ElementMinTemp, starts, "0", "N/A", "N/A", "-"),
		element(ElementMaxTemp, starts, "N/A", "3"),
	}}

	res := newTestAggregator().Aggregate(feed)

	require.Len(t, res.Days, 2)
	assert.Equal(t, 0.0, res.Days[0].MinTemp)
	assert.True(t, res.Days[0].HasMinTemp, "a reported 0 is a reading")
	assert.True(t, res.Days[0].HasMaxTemp)
	assert.False(t, res.Days[1].HasMinTemp)
	assert.False(t, res.Days[1].HasMaxTemp)
}
