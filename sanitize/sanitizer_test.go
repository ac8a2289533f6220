package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustSanitizer(t *testing.T, policy Policy) *Sanitizer {
	t.Helper()
	s, err := New(policy)
	require.NoError(t, err)
	return s
}

func joined(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

func Test_Process_RoundTrip(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{})

	inputs := []string{
		"plain text without anything special",
		"see http://example.com for details",
		"multiple https://a.example.org and www.b.example.net links",
		"mail me at alice@example.com please",
		"trailing link http://example.com",
		"http://example.com leading link",
		"weird spacing   http://example.com   everywhere",
		"accents héhé and ümlauts über www.example.com",
		strings.Repeat("x", 500),
	}
	for _, input := range inputs {
		segments := s.Process(input)
		req.Equal(input, joined(segments), "round-trip failed for %q", input)
	}
}

func Test_Process_BlockedKeyword_SingleSegment(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{BlockedKeywords: []string{"casino", "FREE MONEY"}})

	inputs := []string{
		"win at the CASINO now http://example.com",
		"free money here: www.scam.example",
		"CaSiNo",
	}
	for _, input := range inputs {
		segments := s.Process(input)
		req.Len(segments, 1, "expected one plain segment for %q", input)
		req.Equal(input, segments[0].Text)
		req.False(segments[0].IsLink())
	}
}

func Test_Process_BlockedDomain_KeptVerbatim(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{BlockedDomains: []string{"evil.test"}})

	segments := s.Process("visit http://evil.test and http://ok.test")

	req.Equal([]Segment{
		{Text: "visit "},
		{Text: "http://evil.test"},
		{Text: " and "},
		{Text: "http://ok.test", URL: "http://ok.test"},
	}, segments)
}

func Test_Process_BlockedDomain_CoversSubdomains(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{BlockedDomains: []string{"evil.test"}})

	segments := s.Process("go to http://deep.sub.evil.test/path now")
	req.Equal("go to http://deep.sub.evil.test/path now", joined(segments))
	for _, segment := range segments {
		req.False(segment.IsLink())
	}

	// Similar but distinct domain must not be caught by the suffix rule.
	segments = s.Process("http://notevil.test")
	req.Len(segments, 1)
	req.True(segments[0].IsLink())
}

func Test_Process_StrictMode(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{
		StrictMode:     true,
		AllowedDomains: []string{"intra.example"},
	})

	segments := s.Process("docs at https://wiki.intra.example/page and https://elsewhere.test")
	req.Len(segments, 4)
	req.True(segments[1].IsLink())
	req.Equal("https://wiki.intra.example/page", segments[1].URL)
	req.False(segments[3].IsLink())
	req.Equal("https://elsewhere.test", segments[3].Text)
}

func Test_Process_ProtocolPolicy(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{})

	// javascript: is never in the default whitelist.
	segments := s.Process("click javascript://alert(1) if you dare")
	req.Equal("click javascript://alert(1) if you dare", joined(segments))
	for _, segment := range segments {
		req.False(segment.IsLink())
	}

	segments = s.Process("get it from ftp://files.example.com/pub")
	req.Len(segments, 2)
	req.Equal("ftp://files.example.com/pub", segments[1].URL)
}

func Test_Process_Normalization(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{})

	segments := s.Process("www.example.com")
	req.Len(segments, 1)
	req.Equal("www.example.com", segments[0].Text)
	req.Equal("https://www.example.com", segments[0].URL)

	segments = s.Process("ping bob@example.org tomorrow")
	req.Len(segments, 3)
	req.Equal("bob@example.org", segments[1].Text)
	req.Equal("mailto:bob@example.org", segments[1].URL)
}

func Test_Process_EmptyAndPlain(t *testing.T) {
	req := require.New(t)
	s := mustSanitizer(t, Policy{})

	req.Empty(s.Process(""))

	segments := s.Process("nothing to see here")
	req.Len(segments, 1)
	req.False(segments[0].IsLink())
}
