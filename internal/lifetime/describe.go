package lifetime

import "fmt"

// Preset is a labelled choice offered on a configuration prompt.
type Preset struct {
	Label    string
	Lifetime Lifetime
}

// Presets are the six choices offered for both link expiry and delete-after.
var Presets = []Preset{
	{Label: "1 hour", Lifetime: Seconds(Hour)},
	{Label: "1 day", Lifetime: Seconds(Day)},
	{Label: "1 month", Lifetime: Seconds(Month)},
	{Label: "1 year", Lifetime: Seconds(Year)},
	{Label: "Several years", Lifetime: Seconds(5 * Year)},
	{Label: "Unlimited", Lifetime: Unlimited()},
}

var units = []struct {
	size int64
	name string
}{
	{Year, "year"},
	{Month, "month"},
	{Day, "day"},
	{Hour, "hour"},
}

// Describe renders the largest whole unit that divides the lifetime evenly,
// falling back to seconds.
func Describe(l Lifetime) string {
	if !l.limited {
		return "unlimited"
	}
	s := l.seconds
	for _, u := range units {
		if s >= u.size && s%u.size == 0 {
			return plural(s/u.size, u.name)
		}
	}
	return plural(s, "second")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
