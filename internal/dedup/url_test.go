package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Path",
			want: "https://example.com/Path",
		},
		{
			name: "strips default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "keeps explicit non-default port",
			in:   "https://example.com:8443/a",
			want: "https://example.com:8443/a",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/a#section-2",
			want: "https://example.com/a",
		},
		{
			name: "empty path becomes root",
			in:   "https://example.com",
			want: "https://example.com/",
		},
		{
			name: "strips utm params",
			in:   "https://example.com/a?utm_source=feed&utm_medium=rss&id=7",
			want: "https://example.com/a?id=7",
		},
		{
			name: "strips known tracking params",
			in:   "https://example.com/a?fbclid=xyz&gclid=abc&ref=homepage",
			want: "https://example.com/a",
		},
		{
			name: "sorts remaining query",
			in:   "https://example.com/a?b=2&a=1",
			want: "https://example.com/a?a=1&b=2",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  https://example.com/a  ",
			want: "https://example.com/a",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}

func TestCanonicalURLStableForEquivalentForms(t *testing.T) {
	t.Parallel()

	a := CanonicalURL("https://Example.com/story?utm_campaign=x&id=9#top")
	b := CanonicalURL("https://example.com:443/story?id=9")
	require.Equal(t, a, b)
}
