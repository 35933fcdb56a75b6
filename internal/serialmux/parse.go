package serialmux

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/banshee-data/motion.report/internal/motion"
)

type accelLine struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
	T int64    `json:"t"`
}

// ParseAccelLine decodes one IMU output line. Two formats are accepted:
//
//	{"t":1700000000123,"x":0.01,"y":-0.02,"z":0.98}
//	1700000000123,0.01,-0.02,0.98
//
// t is epoch milliseconds and may be omitted (JSON) or 0, in which case the
// engine stamps the sample on arrival. Lines in neither format (device
// banners, command echoes) return ok=false. A JSON line missing an axis is
// returned with that axis nil so the engine can discard it.
func ParseAccelLine(line string) (ev motion.RawEvent, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ev, false
	}

	if strings.HasPrefix(line, "{") {
		var al accelLine
		if err := json.Unmarshal([]byte(line), &al); err != nil {
			return ev, false
		}
		if al.X == nil && al.Y == nil && al.Z == nil {
			// some other JSON object, e.g. a status reply
			return ev, false
		}
		return motion.RawEvent{X: al.X, Y: al.Y, Z: al.Z, TimestampMillis: al.T}, true
	}

	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return ev, false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return ev, false
	}
	var axes [3]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return ev, false
		}
		axes[i] = v
	}
	return motion.NewRawEvent(axes[0], axes[1], axes[2], ts), true
}
