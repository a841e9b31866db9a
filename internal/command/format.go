package command

import (
	"strconv"
	"strings"
	"time"
)

// FormatTimespan renders a duration the way the debug/status commands
// report uptime and remaining-time figures: day/hour/minute components
// only when non-zero, a seconds component always, each number and its
// unit as separate space-joined tokens, e.g. "1 天 2 小时 5 秒".
func FormatTimespan(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = -seconds
	}

	var parts []string
	if seconds >= 86400 {
		parts = append(parts, strconv.FormatInt(seconds/86400, 10), "天")
	}
	seconds %= 86400
	if seconds >= 3600 {
		parts = append(parts, strconv.FormatInt(seconds/3600, 10), "小时")
	}
	seconds %= 3600
	if seconds >= 60 {
		parts = append(parts, strconv.FormatInt(seconds/60, 10), "分")
	}
	seconds %= 60
	parts = append(parts, strconv.FormatInt(seconds, 10), "秒")

	return strings.Join(parts, " ")
}
