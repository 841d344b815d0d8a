package enums

import "fmt"

// ChannelProvider identifies the platform a channel identifier belongs to.
type ChannelProvider string

const (
	ChannelProviderSite    ChannelProvider = "site"
	ChannelProviderYouTube ChannelProvider = "youtube"
	ChannelProviderTwitch  ChannelProvider = "twitch"
	ChannelProviderTwitter ChannelProvider = "twitter"
	ChannelProviderGitHub  ChannelProvider = "github"
	ChannelProviderReddit  ChannelProvider = "reddit"
	ChannelProviderVimeo   ChannelProvider = "vimeo"
)

var validChannelProviders = []ChannelProvider{
	ChannelProviderSite,
	ChannelProviderYouTube,
	ChannelProviderTwitch,
	ChannelProviderTwitter,
	ChannelProviderGitHub,
	ChannelProviderReddit,
	ChannelProviderVimeo,
}

// IsValid reports whether the provider is known.
func (p ChannelProvider) IsValid() bool {
	for _, candidate := range validChannelProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseChannelProvider converts raw input into ChannelProvider.
func ParseChannelProvider(value string) (ChannelProvider, error) {
	for _, candidate := range validChannelProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel provider %q", value)
}
