package window

import (
    "strconv"
    "strings"
    "time"
)

// Settings keys the bounds are read from.
const (
    SettingStart = "auto_trading_start"
    SettingEnd   = "auto_trading_end"
)

// Bounds is a time-of-day interval in seconds since midnight.
// Start > End means the window wraps midnight: [Start,24:00) ∪ [0,End].
type Bounds struct {
    Start int
    End   int
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
// Malformed or out-of-range input parses as midnight, matching the
// stored-settings contract: a broken setting degrades to a full-day
// window, not an error.
func ParseClock(s string) int {
    parts := strings.Split(s, ":")
    nums := [3]int{}
    for i, p := range parts {
        if i >= 3 { break }
        n, err := strconv.Atoi(strings.TrimSpace(p))
        if err != nil { return 0 }
        nums[i] = n
    }
    if nums[0] < 0 || nums[0] > 23 || nums[1] < 0 || nums[1] > 59 || nums[2] < 0 || nums[2] > 59 {
        return 0
    }
    return nums[0]*3600 + nums[1]*60 + nums[2]
}

// FromSettings reads the window bounds, defaulting to the full day when
// either key is absent.
func FromSettings(settings map[string]string) Bounds {
    start, ok := settings[SettingStart]
    if !ok { start = "00:00:00" }
    end, ok := settings[SettingEnd]
    if !ok { end = "23:59:59" }
    return Bounds{Start: ParseClock(start), End: ParseClock(end)}
}

// Contains reports whether t's time of day falls inside the window.
// Both ends are inclusive.
func (b Bounds) Contains(t time.Time) bool {
    sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
    if b.Start <= b.End {
        return sec >= b.Start && sec <= b.End
    }
    return sec >= b.Start || sec <= b.End
}
