package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s&list=PL1": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                               "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abcDEF12345?feature=share":   "https://www.youtube.com/shorts/abcDEF12345",
		"https://www.youtube.com/@somechannel#about":                 "https://www.youtube.com/@somechannel",
	}
	for in, want := range cases {
		require.Equal(t, want, CanonicalURL(in), "input %s", in)
	}
}

func TestCanonicalURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/abcDEF12345",
		"https://www.youtube.com/@somechannel",
		"https://www.youtube.com/results?search_query=cats",
	}
	for _, in := range inputs {
		once := CanonicalURL(in)
		require.Equal(t, once, CanonicalURL(once), "input %s", in)
	}
}

func TestExtractItemID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dQw4w9WgXcQ", ExtractItemID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1"))
	require.Equal(t, "dQw4w9WgXcQ", ExtractItemID("https://youtu.be/dQw4w9WgXcQ"))
	require.Equal(t, "abcDEF12345", ExtractItemID("https://www.youtube.com/shorts/abcDEF12345"))
	require.Empty(t, ExtractItemID("https://www.youtube.com/@somechannel"))
	require.Empty(t, ExtractItemID("https://www.youtube.com/watch?v=tooshort"))
}

func TestExtractChannelRef(t *testing.T) {
	t.Parallel()

	handle, id := ExtractChannelRef("https://www.youtube.com/@some.channel_1/videos")
	require.Equal(t, "some.channel_1", handle)
	require.Empty(t, id)

	handle, id = ExtractChannelRef("https://www.youtube.com/channel/UCabc123/about")
	require.Empty(t, handle)
	require.Equal(t, "UCabc123", id)
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	require.Equal(t, CategoryShorts, DetectCategory("https://www.youtube.com/shorts/abcDEF12345"))
	require.Equal(t, CategoryVideo, DetectCategory("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
}

func TestChannelURLPrefersHandle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://www.youtube.com/@chan", ChannelURL("chan", "UCabc"))
	require.Equal(t, "https://www.youtube.com/@chan", ChannelURL("@chan", ""))
	require.Equal(t, "https://www.youtube.com/channel/UCabc", ChannelURL("", "UCabc"))
	require.Empty(t, ChannelURL("", ""))
}

func TestSearchURLEscapesKeyword(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://www.youtube.com/results?search_query=cute+cats%2Fdogs",
		SearchURL("cute cats/dogs"))
}

func TestIsChannelAndItemURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsChannelURL("https://www.youtube.com/@chan"))
	require.True(t, IsChannelURL("https://www.youtube.com/channel/UCabc"))
	require.False(t, IsChannelURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))

	require.True(t, IsItemURL("https://youtu.be/dQw4w9WgXcQ"))
	require.True(t, IsItemURL("https://www.youtube.com/shorts/abcDEF12345"))
	require.False(t, IsItemURL("cute cats"))
}
