package usecase

import (
	"fmt"
	"net/url"
	"strings"

	"yessir/internal/domain"
)

const transitURLFormat = "https://www.google.com/maps/dir/?api=1&destination=%s&travelmode=transit"

func transitDeeplink(address string) string {
	return fmt.Sprintf(transitURLFormat, url.QueryEscape(address))
}

// resolveNavigation turns a transport result into a navigation target. The
// server deeplink is kept unless the alias table rewrote the destination.
func resolveNavigation(result domain.CommandResult, resolve func(string) string) *domain.NavigationTarget {
	destination := strings.TrimSpace(result.DataString("destination"))
	if destination == "" {
		if parsed, ok := result.ParsedData["destination"].(string); ok {
			destination = strings.TrimSpace(parsed)
		}
	}
	if destination == "" {
		return nil
	}

	address := resolve(destination)
	deeplink := strings.TrimSpace(result.DataString("deeplink"))
	if address != destination || deeplink == "" {
		deeplink = transitDeeplink(address)
	}

	return &domain.NavigationTarget{
		Destination: destination,
		Address:     address,
		Deeplink:    deeplink,
	}
}
