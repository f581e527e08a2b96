package notify

import "strconv"

// DefaultBadgeCap is the largest count shown before the badge reads "9+".
const DefaultBadgeCap = 9

// Badge formats an unread count for the bell. Zero yields an empty string and
// counts above limit yield "<limit>+". A non-positive limit uses DefaultBadgeCap.
func Badge(count, limit int) string {
	if limit <= 0 {
		limit = DefaultBadgeCap
	}
	switch {
	case count <= 0:
		return ""
	case count > limit:
		return strconv.Itoa(limit) + "+"
	default:
		return strconv.Itoa(count)
	}
}
