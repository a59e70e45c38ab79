package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseSnapshot converts a loosely typed document into an ActivitySnapshot.
// Missing or malformed fields take their documented defaults; it never fails.
func ParseSnapshot(familyID string, doc map[string]interface{}) ActivitySnapshot {
	snap := ActivitySnapshot{
		FamilyID:              familyID,
		AlertThresholdHours:   DefaultAlertThresholdHours,
		SurvivalSignalEnabled: true,
	}
	if doc == nil {
		return snap
	}

	snap.LastPhoneActivity = toTime(doc[KeyLastPhoneActivity])
	snap.AlertClearedAt = toTime(doc[KeyAlertClearedAt])

	if name, ok := doc[KeyElderlyName].(string); ok {
		snap.ElderlyName = strings.TrimSpace(name)
	}

	if hours, ok := toInt(doc[KeyAlertThresholdHours]); ok {
		snap.AlertThresholdHours = ClampAlertThreshold(hours)
	}

	if enabled, ok := toBool(doc[KeySurvivalSignalEnabled]); ok {
		snap.SurvivalSignalEnabled = enabled
	}

	if active, ok := toBool(doc[KeyManualAlertActive]); ok {
		snap.ManualAlertActive = active
	}
	if msg, ok := doc[KeyManualAlertMessage].(string); ok && strings.TrimSpace(msg) != "" {
		msg = strings.TrimSpace(msg)
		snap.ManualAlertMessage = &msg
	}

	if level, ok := toInt(doc[KeyBatteryLevel]); ok && level >= 0 && level <= 100 {
		snap.BatteryLevel = &level
	}

	if raw, ok := doc[KeySleepSchedule].(map[string]interface{}); ok {
		snap.SleepSchedule = parseSleepSchedule(raw)
	}

	return snap
}

func parseSleepSchedule(raw map[string]interface{}) *SleepSchedule {
	s := &SleepSchedule{}
	s.Enabled, _ = toBool(raw[KeySleepEnabled])
	// Unparseable clock fields become -1 so the window evaluator rejects them.
	s.StartHour = intOr(raw[KeySleepStartHour], -1)
	s.StartMinute = intOr(raw[KeySleepStartMinute], 0)
	s.EndHour = intOr(raw[KeySleepEndHour], -1)
	s.EndMinute = intOr(raw[KeySleepEndMinute], 0)

	days, present := raw[KeySleepWeekdays]
	if !present || days == nil {
		s.ActiveWeekdays = []int{1, 2, 3, 4, 5, 6, 7}
		return s
	}
	list, ok := days.([]interface{})
	if !ok {
		s.ActiveWeekdays = []int{1, 2, 3, 4, 5, 6, 7}
		return s
	}
	s.ActiveWeekdays = make([]int, 0, len(list))
	seen := make(map[int]bool, 7)
	for _, d := range list {
		day, ok := toInt(d)
		if !ok || day < 1 || day > 7 || seen[day] {
			continue
		}
		seen[day] = true
		s.ActiveWeekdays = append(s.ActiveWeekdays, day)
	}
	return s
}

func intOr(v interface{}, def int) int {
	if i, ok := toInt(v); ok {
		return i
	}
	return def
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed, true
		}
	}
	return false, false
}

// toTime accepts time.Time, RFC3339 strings, unix milliseconds and
// {"_seconds", "_nanoseconds"} timestamp maps.
func toTime(v interface{}) *time.Time {
	var t time.Time
	switch ts := v.(type) {
	case time.Time:
		t = ts
	case *time.Time:
		if ts == nil {
			return nil
		}
		t = *ts
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(ts))
		if err != nil {
			return nil
		}
		t = parsed
	case map[string]interface{}:
		secs, ok := toInt64(ts["_seconds"])
		if !ok {
			secs, ok = toInt64(ts["seconds"])
		}
		if !ok {
			return nil
		}
		nanos, _ := toInt64(ts["_nanoseconds"])
		t = time.Unix(secs, nanos)
	default:
		ms, ok := toInt64(v)
		if !ok {
			return nil
		}
		t = time.UnixMilli(ms)
	}
	if t.IsZero() {
		return nil
	}
	return &t
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
