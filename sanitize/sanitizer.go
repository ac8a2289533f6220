// Package sanitize turns raw message text into typed segments for
// rendering: verbatim plain text and verified-safe links. It is a pure
// transformation; nothing here touches the hub or the store.
//
// A SafeLink segment must never be rendered as an auto-followable
// anchor. Activation goes through an explicit user action that hands
// the resolved URL to an external opener.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Segment is one slice of the original message. Text always holds the
// exact original characters, so concatenating the Text fields of all
// segments reproduces the input. URL is the resolved target for safe
// links and empty for plain text.
type Segment struct {
	Text string
	URL  string
}

// IsLink reports whether the segment passed the link policy.
func (s Segment) IsLink() bool { return s.URL != "" }

// tokenPattern finds URL-like tokens in one linear pass: scheme URLs,
// bare www hosts, and email addresses. Validation of what the token
// actually points at happens afterwards, per policy.
var tokenPattern = regexp.MustCompile(`(?i)[a-z][a-z0-9+.-]*://[^\s<>"]+|www\.[a-z0-9-]+(?:\.[a-z0-9-]+)+[^\s<>"]*|[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}`)

var emailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+-]+@[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}$`)

type Sanitizer struct {
	policy    Policy
	matcher   *goahocorasick.Machine // nil when the policy blocks nothing
	protocols map[string]struct{}
}

// New builds the keyword automaton once so Process stays allocation
// light on the hot rendering path.
func New(policy Policy) (*Sanitizer, error) {
	keywords := lo.Filter(policy.BlockedKeywords, func(w string, _ int) bool {
		return strings.TrimSpace(w) != ""
	})

	var matcher *goahocorasick.Machine
	if len(keywords) > 0 {
		patterns := make([][]rune, len(keywords))
		for i, word := range keywords {
			patterns[i] = []rune(strings.ToLower(word))
		}
		matcher = new(goahocorasick.Machine)
		if err := matcher.Build(patterns); err != nil {
			return nil, err
		}
	}

	schemes := policy.AllowedProtocols
	if len(schemes) == 0 {
		schemes = DefaultProtocols
	}
	protocols := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		protocols[strings.ToLower(s)] = struct{}{}
	}

	return &Sanitizer{policy: policy, matcher: matcher, protocols: protocols}, nil
}

// Process segments one message. Order of rules:
//  1. any blocked keyword anywhere: the whole text is one plain segment,
//  2. otherwise every URL-like token is validated against the policy,
//     failures staying in place as verbatim plain text.
func (s *Sanitizer) Process(text string) []Segment {
	if text == "" {
		return nil
	}
	if s.containsBlockedKeyword(text) {
		return []Segment{{Text: text}}
	}

	var segments []Segment
	last := 0
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		token := text[loc[0]:loc[1]]
		if target, ok := s.resolve(token); ok {
			segments = append(segments, Segment{Text: token, URL: target})
		} else {
			segments = append(segments, Segment{Text: token})
		}
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

func (s *Sanitizer) containsBlockedKeyword(text string) bool {
	if s.matcher == nil {
		return false
	}
	lowered := []rune(strings.ToLower(text))
	return len(s.matcher.MultiPatternSearch(lowered, true)) > 0
}

// resolve normalizes one token and applies the protocol and domain
// policy. The boolean is false when the token must stay plain text.
func (s *Sanitizer) resolve(token string) (string, bool) {
	normalized := token
	switch {
	case !strings.Contains(token, "://") && emailPattern.MatchString(token):
		normalized = "mailto:" + token
	case strings.HasPrefix(strings.ToLower(token), "www."):
		normalized = "https://" + token
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if _, ok := s.protocols[scheme]; !ok {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if scheme == "mailto" {
		// mailto targets are opaque; the domain policy applies to the
		// part after the last @.
		if at := strings.LastIndex(parsed.Opaque, "@"); at >= 0 {
			host = strings.ToLower(parsed.Opaque[at+1:])
		}
	}

	if s.policy.StrictMode {
		if !hostMatchesAny(host, s.policy.AllowedDomains) {
			return "", false
		}
	} else if hostMatchesAny(host, s.policy.BlockedDomains) {
		return "", false
	}
	return normalized, true
}

func hostMatchesAny(host string, domains []string) bool {
	for _, domain := range domains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
