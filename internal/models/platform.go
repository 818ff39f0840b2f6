package models

import "strings"

// Platform is the destination a story was written for, or the archive format
// it was reconstructed from when the original destination is unknown.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformHTML      Platform = "html"
	PlatformMarkdown  Platform = "markdown"
	PlatformPDF       Platform = "pdf"
	PlatformUnknown   Platform = "unknown"
)

// SocialPlatforms are the platforms a story can be generated for.
var SocialPlatforms = []Platform{PlatformFacebook, PlatformLinkedIn, PlatformInstagram, PlatformTwitter}

// ParsePlatform maps labels such as "Facebook" or "Twitter/X" to a Platform.
// The empty string stays empty; anything unrecognised is PlatformUnknown.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "facebook", "fb":
		return PlatformFacebook
	case "linkedin":
		return PlatformLinkedIn
	case "instagram", "ig":
		return PlatformInstagram
	case "twitter", "twitter/x", "x":
		return PlatformTwitter
	case "html":
		return PlatformHTML
	case "markdown", "md":
		return PlatformMarkdown
	case "pdf":
		return PlatformPDF
	}
	return PlatformUnknown
}

// IsSocial reports whether p is one of the generation targets.
func (p Platform) IsSocial() bool {
	for _, s := range SocialPlatforms {
		if p == s {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(text []byte) error {
	*p = ParsePlatform(string(text))
	return nil
}
