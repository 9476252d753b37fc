// Package device derives a stable device fingerprint for behavioral telemetry.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"verigate/pkg/requestcontext"
)

// FingerprintHeader lets capture clients send their own fingerprint.
const FingerprintHeader = "X-Device-Fingerprint"

// ParseUserAgent renders a short display name such as "Chrome on Mac OS X".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Fingerprint hashes the browser family, browser major version, OS and
// platform. Minor browser updates keep the same fingerprint.
func Fingerprint(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	if idx := strings.Index(version, "."); idx != -1 {
		version = version[:idx]
	}
	parts := []string{browser, version, ua.OS(), ua.Platform()}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Middleware stores the client-supplied fingerprint, or one derived from the User-Agent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := strings.TrimSpace(r.Header.Get(FingerprintHeader))
		if fp == "" {
			fp = Fingerprint(r.Header.Get("User-Agent"))
		}
		ctx := requestcontext.WithDeviceFingerprint(r.Context(), fp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
