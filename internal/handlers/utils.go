package handlers

import (
	"net/http"
	"strings"
)

// SeatCookieName is the cookie a browser client may use to carry its seat token.
const SeatCookieName = "seat_token"

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// seatTokenFromRequest returns a seat token sent with the upgrade request, from
// the Authorization header or the seat cookie. A token inside join_room wins.
func seatTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return extractCookieToken(r.Header.Get("Cookie"), SeatCookieName)
}
