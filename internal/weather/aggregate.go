package weather

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxDays is the number of daily summaries produced per feed.
const DefaultMaxDays = 3

// Defaults are substituted for metrics that are missing or never parse.
type Defaults struct {
	Condition string
	MinTemp   float64 // floor used when no MinT reading of a day parses
	MaxTemp   float64 // ceiling used when no MaxT reading of a day parses
	Humidity  float64
	WindSpeed string
	Comfort   string
}

// DefaultValues is the substitution table used unless overridden.
var DefaultValues = Defaults{
	Condition: "N/A",
	MinTemp:   0,
	MaxTemp:   0,
	Humidity:  0,
	WindSpeed: "N/A",
	Comfort:   "N/A",
}

// Aggregator reduces a feed to at most MaxDays daily summaries, anchored on
// the Wx element. It holds no state between calls.
type Aggregator struct {
	clock    clockwork.Clock
	location *time.Location
	maxDays  int
	defaults Defaults
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock sets the time source used to decide which date is today.
func WithClock(c clockwork.Clock) AggregatorOption {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLocation sets the feed's reporting timezone.
func WithLocation(loc *time.Location) AggregatorOption {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithMaxDays caps the number of summaries. Values below 1 are ignored.
func WithMaxDays(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxDays = n
		}
	}
}

// WithDefaults replaces the substitution table.
func WithDefaults(d Defaults) AggregatorOption {
	return func(a *Aggregator) {
		a.defaults = d
	}
}

// NewAggregator creates an Aggregator. Without options it uses the real
// clock, UTC and DefaultMaxDays.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		clock:    clockwork.NewRealClock(),
		location: time.UTC,
		maxDays:  DefaultMaxDays,
		defaults: DefaultValues,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location returns the timezone the aggregator buckets dates in.
func (a *Aggregator) Location() *time.Location {
	return a.location
}

// metric is one element reading at a slot index.
type metric struct {
	value   string
	present bool
}

func (m metric) or(def string) string {
	if !m.present {
		return def
	}
	return m.value
}

// slotReading holds every metric read at one Wx slot index.
type slotReading struct {
	condition metric
	minTemp   metric
	maxTemp   metric
	precip    metric
	comfort   metric
	humidity  metric
	windSpeed metric
}

// dailyBucket groups the slot readings that start on the same date.
type dailyBucket struct {
	date     time.Time
	readings []slotReading
}

// Aggregate groups the Wx slots of feed into calendar days and reduces each
// day to a DailySummary. Missing elements, short series and unparseable
// numbers fall back to defaults; a feed without Wx yields no days.
func (a *Aggregator) Aggregate(feed *Feed) Result {
	idx := NewElementIndex(feed)
	diag := Diagnostics{MissingElements: missingElements(idx)}

	wx, ok := idx.Lookup(ElementCondition)
	if !ok || len(wx.TimeSlots) == 0 {
		return Result{Days: []DailySummary{}, Diagnostics: diag}
	}

	type dayKey string

	buckets := make(map[dayKey]*dailyBucket)
	keys := make([]string, 0, a.maxDays)

	var current *Current

	for i, slot := range wx.TimeSlots {
		start, ok := parseSlotTime(slot.StartTime, a.location)
		if !ok {
			diag.UndatedSlots++
			continue
		}
		if current == nil || start.Before(current.StartTime) {
			current = a.currentAt(idx, i, start)
		}

		date := startOfDay(start)
		k := dayKey(date.Format("2006-01-02"))
		b, exists := buckets[k]
		if !exists {
			b = &dailyBucket{date: date}
			buckets[k] = b
			keys = append(keys, string(k))
		}
		b.readings = append(b.readings, readSlot(idx, i, &diag))
	}

	sort.Strings(keys)

	today := startOfDay(a.clock.Now().In(a.location))
	days := make([]DailySummary, 0, a.maxDays)

	for _, k := range keys {
		if len(days) >= a.maxDays {
			diag.DroppedDays++
			continue
		}
		days = append(days, a.reduce(buckets[dayKey(k)], today, &diag))
	}

	return Result{Current: current, Days: days, Diagnostics: diag}
}

// currentAt reads the slot at index i as reported. Defaults are not counted
// in diagnostics again; readSlot already did for the same slot.
func (a *Aggregator) currentAt(idx ElementIndex, i int, start time.Time) *Current {
	value := func(name string) (string, bool) {
		v, ok := idx.valueAt(name, i)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	number := func(name string) (float64, bool) {
		v, ok := value(name)
		if !ok {
			return 0, false
		}
		return parseNumber(v)
	}

	c := &Current{
		StartTime: start,
		Condition: a.defaults.Condition,
		MinTemp:   a.defaults.MinTemp,
		MaxTemp:   a.defaults.MaxTemp,
	}
	if wx, ok := idx.Lookup(ElementCondition); ok {
		if end, ok := parseSlotTime(wx.TimeSlots[i].EndTime, a.location); ok {
			c.EndTime = end
		}
	}
	if v, ok := value(ElementCondition); ok {
		c.Condition = v
	}
	if v, ok := number(ElementPrecipProb); ok {
		c.PrecipProbability = v
	}
	if v, ok := number(ElementMinTemp); ok {
		c.MinTemp, c.HasMinTemp = v, true
	}
	if v, ok := number(ElementMaxTemp); ok {
		c.MaxTemp, c.HasMaxTemp = v, true
	}
	return c
}

// readSlot reads every metric at slot index i.
func readSlot(idx ElementIndex, i int, diag *Diagnostics) slotReading {
	read := func(name string) metric {
		v, ok := idx.valueAt(name, i)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			diag.DefaultedValues++
			return metric{}
		}
		return metric{value: v, present: true}
	}

	return slotReading{
		condition: read(ElementCondition),
		minTemp:   read(ElementMinTemp),
		maxTemp:   read(ElementMaxTemp),
		precip:    read(ElementPrecipProb),
		comfort:   read(ElementComfort),
		humidity:  read(ElementHumidity),
		windSpeed: read(ElementWindSpeed),
	}
}

func (a *Aggregator) reduce(b *dailyBucket, today time.Time, diag *Diagnostics) DailySummary {
	first := b.readings[0]

	var minT, maxT, precip, humidity numericStat
	for _, r := range b.readings {
		minT.add(r.minTemp, diag)
		maxT.add(r.maxTemp, diag)
		precip.add(r.precip, diag)
		humidity.add(r.humidity, diag)
	}

	avgHumidity := a.defaults.Humidity
	if humidity.n > 0 {
		avgHumidity = math.Round(humidity.sum / float64(humidity.n))
	}

	return DailySummary{
		Date:                 b.date,
		Relative:             RelativeDay(daysBetween(today, b.date)),
		Weekday:              b.date.Weekday(),
		Condition:            first.condition.or(a.defaults.Condition),
		MinTemp:              minT.minOr(a.defaults.MinTemp),
		MaxTemp:              maxT.maxOr(a.defaults.MaxTemp),
		HasMinTemp:           minT.n > 0,
		HasMaxTemp:           maxT.n > 0,
		MaxPrecipProbability: precip.maxOr(0),
		AvgHumidity:          avgHumidity,
		WindSpeed:            first.windSpeed.or(a.defaults.WindSpeed),
		ComfortIndex:         first.comfort.or(a.defaults.Comfort),
		Slots:                len(b.readings),
	}
}

// numericStat accumulates the parseable readings of one metric in a bucket.
type numericStat struct {
	n        int
	sum      float64
	min, max float64
}

func (s *numericStat) add(m metric, diag *Diagnostics) {
	if !m.present {
		return
	}
	v, ok := parseNumber(m.value)
	if !ok {
		diag.UnparsedValues++
		return
	}
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.n++
}

func (s *numericStat) minOr(def float64) float64 {
	if s.n == 0 {
		return def
	}
	return s.min
}

func (s *numericStat) maxOr(def float64) float64 {
	if s.n == 0 {
		return def
	}
	return s.max
}

// parseNumber parses a metric value written as a plain decimal, such as
// "26", "-3.5" or "+.5". Sentinels like "N/A" or "-" and any other numeric
// syntax (exponents, hex, digit separators, NaN, Inf) are rejected rather
// than read as zero.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !isPlainDecimal(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isPlainDecimal(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func missingElements(idx ElementIndex) []string {
	var missing []string
	for _, name := range []string{
		ElementCondition, ElementMinTemp, ElementMaxTemp, ElementPrecipProb,
		ElementComfort, ElementHumidity, ElementWindSpeed,
	} {
		if _, ok := idx.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
