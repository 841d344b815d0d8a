package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/payoutledger/pkg/enums"
)

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"site.com", "site.com"},
		{"youtube#channel:UCaaaaaaaaaaaaaaaaaaaaaa", "youtube#channel:UCaaaaaaaaaaaaaaaaaaaaaa"},
		{"youtube#channel:someuser", "youtube#user:someuser"},
		{"youtube#channel:UCshort", "youtube#user:UCshort"},
		{"twitch#channel:streamer", "twitch#author:streamer"},
		{"twitch#author:streamer", "twitch#author:streamer"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeChannel(tt.in), tt.in)
	}
}

func TestParseChannel(t *testing.T) {
	props, ok := ParseChannel("site.com")
	assert.True(t, ok)
	assert.Equal(t, enums.ChannelProviderSite, props.Provider)
	assert.Equal(t, "site.com", props.ID)

	props, ok = ParseChannel("youtube#user:someone")
	assert.True(t, ok)
	assert.Equal(t, enums.ChannelProviderYouTube, props.Provider)
	assert.Equal(t, "user", props.Suffix)
	assert.Equal(t, "someone", props.ID)

	_, ok = ParseChannel("myspace#user:x")
	assert.False(t, ok)
	_, ok = ParseChannel("twitch#author:")
	assert.False(t, ok)
	_, ok = ParseChannel("")
	assert.False(t, ok)
}

func TestIsYouTubeUser(t *testing.T) {
	assert.True(t, IsYouTubeUser(NormalizeChannel("youtube#channel:someone")))
	assert.False(t, IsYouTubeUser("youtube#channel:UCaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, IsYouTubeUser("site.com"))
}
