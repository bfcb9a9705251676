package weather

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"

	"github.com/cmjh/portal-weather/internal/common"
)

// conditionKeywords is checked in order; the first category with a matching
// keyword wins and anything unmatched is clear.
var conditionKeywords = []struct {
	category Condition
	keywords []string
}{
	{ConditionRain, []string{"雨", "rain", "shower", "drizzle", "thunderstorm"}},
	{ConditionSnow, []string{"雪", "snow", "sleet", "blizzard"}},
	{ConditionCloudy, []string{"雲", "陰", "cloud", "overcast"}},
}

// Categorize resolves a free-text condition to a display category.
func Categorize(condition string) Condition {
	for _, c := range conditionKeywords {
		if common.HasAnyFold(condition, c.keywords...) {
			return c.category
		}
	}
	return ConditionClear
}

// Locale holds the wording used to present daily summaries. Obtain one from
// MatchLocale; the zero value presents in Traditional Chinese.
type Locale struct {
	Tag      language.Tag
	now      string
	weekdays [7]string
	relative func(RelativeDay) string
}

func (l Locale) orDefault() Locale {
	if l.relative == nil {
		return localeTraditionalChinese
	}
	return l
}

var (
	localeTraditionalChinese = Locale{
		Tag:      language.MustParse("zh-TW"),
		now:      "現在",
		weekdays: [7]string{"週日", "週一", "週二", "週三", "週四", "週五", "週六"},
		relative: func(d RelativeDay) string {
			switch {
			case d == -1:
				return "昨天"
			case d == 0:
				return "今天"
			case d == 1:
				return "明天"
			case d == 2:
				return "後天"
			case d < 0:
				return fmt.Sprintf("%d天前", -d)
			default:
				return fmt.Sprintf("%d天後", d)
			}
		},
	}
	localeEnglish = Locale{
		Tag:      language.English,
		now:      "Now",
		weekdays: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		relative: func(d RelativeDay) string {
			switch {
			case d == -1:
				return "Yesterday"
			case d == 0:
				return "Today"
			case d == 1:
				return "Tomorrow"
			case d == 2:
				return "Day after tomorrow"
			case d < 0:
				return fmt.Sprintf("%d days ago", -d)
			default:
				return fmt.Sprintf("In %d days", d)
			}
		},
	}

	locales       = []Locale{localeTraditionalChinese, localeEnglish}
	localeMatcher = language.NewMatcher([]language.Tag{localeTraditionalChinese.Tag, localeEnglish.Tag})
)

// MatchLocale picks the supported locale closest to the given preferences.
// Each preference may be a single tag ("en") or an Accept-Language header.
// Traditional Chinese is used when nothing matches.
func MatchLocale(prefs ...string) Locale {
	var tags []language.Tag
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return locales[0]
	}
	_, i, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return locales[0]
	}
	return locales[i]
}

// DisplayDay is a DailySummary reduced to what a forecast card renders.
type DisplayDay struct {
	Date              string      `json:"date"`
	Label             string      `json:"label"`
	Weekday           string      `json:"weekday"`
	Relative          RelativeDay `json:"relative"`
	Condition         string      `json:"condition"`
	Icon              Condition   `json:"icon"`
	MinTemp           int         `json:"minTemp"`
	MaxTemp           int         `json:"maxTemp"`
	HasMinTemp        bool        `json:"hasMinTemp"`
	HasMaxTemp        bool        `json:"hasMaxTemp"`
	PrecipProbability int         `json:"precipProbability"`
	Humidity          int         `json:"humidity"`
	WindSpeed         string      `json:"windSpeed"`
	ComfortIndex      string      `json:"comfortIndex"`
}

// ToDisplay maps a summary to display fields in the given locale.
func ToDisplay(s DailySummary, loc Locale) DisplayDay {
	loc = loc.orDefault()
	weekday := loc.weekdays[s.Weekday]
	return DisplayDay{
		Date:              fmt.Sprintf("%d/%d %s", int(s.Date.Month()), s.Date.Day(), weekday),
		Label:             loc.relative(s.Relative),
		Weekday:           weekday,
		Relative:          s.Relative,
		Condition:         s.Condition,
		Icon:              Categorize(s.Condition),
		MinTemp:           round(s.MinTemp),
		MaxTemp:           round(s.MaxTemp),
		HasMinTemp:        s.HasMinTemp,
		HasMaxTemp:        s.HasMaxTemp,
		PrecipProbability: round(s.MaxPrecipProbability),
		Humidity:          round(s.AvgHumidity),
		WindSpeed:         s.WindSpeed,
		ComfortIndex:      s.ComfortIndex,
	}
}

// ToDisplayAll maps every summary, preserving order.
func ToDisplayAll(days []DailySummary, loc Locale) []DisplayDay {
	out := make([]DisplayDay, 0, len(days))
	for _, d := range days {
		out = append(out, ToDisplay(d, loc))
	}
	return out
}

// DisplayCurrent is the current-conditions card. Temperatures whose Has flag
// is false were not reported and carry the default.
type DisplayCurrent struct {
	Label             string    `json:"label"`
	Since             string    `json:"since"`
	Condition         string    `json:"condition"`
	Icon              Condition `json:"icon"`
	PrecipProbability int       `json:"precipProbability"`
	MinTemp           int       `json:"minTemp"`
	MaxTemp           int       `json:"maxTemp"`
	HasMinTemp        bool      `json:"hasMinTemp"`
	HasMaxTemp        bool      `json:"hasMaxTemp"`
}

// ToDisplayCurrent maps the current reading to display fields. Since is the
// slot start as "M/D HH:MM" in the reading's timezone.
func ToDisplayCurrent(c Current, loc Locale) DisplayCurrent {
	loc = loc.orDefault()
	return DisplayCurrent{
		Label:             loc.now,
		Since:             fmt.Sprintf("%d/%d %s", int(c.StartTime.Month()), c.StartTime.Day(), c.StartTime.Format("15:04")),
		Condition:         c.Condition,
		Icon:              Categorize(c.Condition),
		PrecipProbability: round(c.PrecipProbability),
		MinTemp:           round(c.MinTemp),
		MaxTemp:           round(c.MaxTemp),
		HasMinTemp:        c.HasMinTemp,
		HasMaxTemp:        c.HasMaxTemp,
	}
}

func round(v float64) int {
	return int(math.Round(v))
}
