// agora/utils/security.go
package utils

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// GetIPAddress returns the client address. Forwarding headers are honored only when the
// direct peer falls inside one of the trusted proxy networks; otherwise the peer is the client.
func GetIPAddress(r *http.Request, trusted []*net.IPNet) string {
	peer := peerAddress(r)
	if !inNetworks(net.ParseIP(peer), trusted) {
		return peer
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}

func peerAddress(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func inNetworks(ip net.IP, nets []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// IsLocalRequest checks if the client resolved by GetIPAddress is a private or loopback address.
func IsLocalRequest(r *http.Request, trusted []*net.IPNet) bool {
	ip := net.ParseIP(GetIPAddress(r, trusted))
	return ip != nil && (ip.IsPrivate() || ip.IsLoopback())
}

// RateLimitKey identifies the caller for write throttling: the account when logged in,
// the client address otherwise.
func RateLimitKey(clientIP string, userID int64, loggedIn bool) string {
	if loggedIn {
		return "u:" + strconv.FormatInt(userID, 10)
	}
	return "ip:" + clientIP
}
