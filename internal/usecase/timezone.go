package usecase

import (
	"os"
	"strings"
	"time"
)

const zoneinfoMarker = "zoneinfo/"

// LocalTimezone returns the IANA id of the local zone, falling back to UTC.
func LocalTimezone() string {
	if tz := strings.TrimPrefix(strings.TrimSpace(os.Getenv("TZ")), ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}

	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if index := strings.LastIndex(target, zoneinfoMarker); index >= 0 {
			return target[index+len(zoneinfoMarker):]
		}
	}

	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}
