package ledger

import (
	"strings"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

const (
	youtubeChannelPrefix = "youtube#channel:"
	youtubeUserPrefix    = "youtube#user:"
	twitchChannelPrefix  = "twitch#channel:"
	twitchAuthorPrefix   = "twitch#author:"

	youtubeChannelIDLen = 24
)

// ChannelProps describes a normalized channel identifier.
type ChannelProps struct {
	Provider enums.ChannelProvider
	Suffix   string
	ID       string
}

// NormalizeChannel maps legacy channel spellings onto their canonical form.
// A youtube "channel" whose id is not a channel id is really a user handle,
// and twitch channels are keyed by author.
func NormalizeChannel(channel string) string {
	switch {
	case strings.HasPrefix(channel, youtubeChannelPrefix):
		id := strings.TrimPrefix(channel, youtubeChannelPrefix)
		if !isYouTubeChannelID(id) {
			return youtubeUserPrefix + id
		}
	case strings.HasPrefix(channel, twitchChannelPrefix):
		return twitchAuthorPrefix + strings.TrimPrefix(channel, twitchChannelPrefix)
	}
	return channel
}

func isYouTubeChannelID(id string) bool {
	return len(id) == youtubeChannelIDLen && strings.HasPrefix(id, "UC")
}

// ParseChannel splits "provider#suffix:id" channels. Bare identifiers are sites.
func ParseChannel(channel string) (ChannelProps, bool) {
	hash := strings.Index(channel, "#")
	if hash < 0 {
		if channel == "" {
			return ChannelProps{}, false
		}
		return ChannelProps{Provider: enums.ChannelProviderSite, ID: channel}, true
	}
	provider, err := enums.ParseChannelProvider(channel[:hash])
	if err != nil || provider == enums.ChannelProviderSite {
		return ChannelProps{}, false
	}
	rest := channel[hash+1:]
	colon := strings.Index(rest, ":")
	if colon <= 0 || colon == len(rest)-1 {
		return ChannelProps{}, false
	}
	return ChannelProps{Provider: provider, Suffix: rest[:colon], ID: rest[colon+1:]}, true
}

// IsYouTubeUser reports whether a normalized channel is a youtube user handle,
// which cannot receive payouts.
func IsYouTubeUser(normalizedChannel string) bool {
	props, ok := ParseChannel(normalizedChannel)
	return ok && props.Provider == enums.ChannelProviderYouTube && props.Suffix == "user"
}
