// Package videosource classifies user supplied video URLs into provider specific references.
package videosource

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

type Kind string

const (
	KindFile        Kind = "file"
	KindYouTube     Kind = "youtube"
	KindVimeo       Kind = "vimeo"
	KindTwitch      Kind = "twitch"
	KindDailymotion Kind = "dailymotion"
)

// Match is the result of a successful classification.
// URL is the provider's full form of the reference, ID is the provider identifier.
// Live is set for twitch channel URLs, where ID is the channel name.
type Match struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	URL  string `json:"url"`
	Live bool   `json:"live,omitempty"`
}

var (
	schemeRe      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	youtubeIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	digitsRe      = regexp.MustCompile(`^[0-9]+$`)
	twitchChanRe  = regexp.MustCompile(`^[A-Za-z0-9_]{3,25}$`)
	dailymotionRe = regexp.MustCompile(`^x[0-9a-zA-Z]+$`)
)

var fileExts = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".ogg":  {},
	".mov":  {},
	".mkv":  {},
	".avi":  {},
}

// input is the parsed form shared by all rules. u is nil when raw is not a URL.
type input struct {
	raw  string
	u    *url.URL
	host string
	segs []string
}

type rule struct {
	kind    Kind
	extract func(in input) (Match, bool)
}

// rules are evaluated top to bottom, first hit wins.
var rules = []rule{
	{KindFile, matchFile},
	{KindYouTube, matchYouTube},
	{KindVimeo, matchVimeo},
	{KindTwitch, matchTwitch},
	{KindDailymotion, matchDailymotion},
}

// Classify returns the first provider whose patterns accept raw.
// It never fails; ok=false means the URL should be played with a generic player.
func Classify(raw string) (Match, bool) {
	in, ok := parse(raw)
	if !ok {
		return Match{}, false
	}

	for _, r := range rules {
		if m, ok := r.extract(in); ok {
			m.Kind = r.kind
			return m, true
		}
	}
	return Match{}, false
}

// Canonicalize rewrites YouTube references to the watch URL. Any other input is trimmed and
// gets https:// prepended when it has no scheme. Empty input stays empty.
func Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m, ok := Classify(raw); ok && m.Kind == KindYouTube {
		return m.URL
	}
	return withScheme(raw)
}

// EmbedURL returns the iframe/player URL for the match.
func (m Match) EmbedURL() string {
	switch m.Kind {
	case KindYouTube:
		return "https://www.youtube.com/embed/" + m.ID
	case KindVimeo:
		return "https://player.vimeo.com/video/" + m.ID
	case KindTwitch:
		if m.Live {
			return "https://player.twitch.tv/?channel=" + url.QueryEscape(m.ID)
		}
		return "https://player.twitch.tv/?video=v" + m.ID
	case KindDailymotion:
		return "https://www.dailymotion.com/embed/video/" + m.ID
	default:
		return m.URL
	}
}

func withScheme(raw string) string {
	if schemeRe.MatchString(raw) {
		return raw
	}
	return "https://" + raw
}

func parse(raw string) (input, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return input{}, false
	}

	in := input{raw: raw}
	// bare ids have neither dots nor slashes
	if !strings.ContainsAny(raw, "./") {
		return in, true
	}

	u, err := url.Parse(withScheme(raw))
	if err != nil || u.Host == "" {
		return input{}, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return input{}, false
	}

	in.u = u
	in.host = strings.ToLower(u.Hostname())
	for _, p := range []string{"www.", "m.", "music."} {
		in.host = strings.TrimPrefix(in.host, p)
	}
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			in.segs = append(in.segs, s)
		}
	}
	return in, true
}

func matchFile(in input) (Match, bool) {
	if in.u == nil {
		return Match{}, false
	}
	ext := strings.ToLower(path.Ext(in.u.Path))
	if _, ok := fileExts[ext]; !ok {
		return Match{}, false
	}
	return Match{ID: path.Base(in.u.Path), URL: withScheme(in.raw)}, true
}

func youtubeMatch(id string) (Match, bool) {
	if !youtubeIDRe.MatchString(id) {
		return Match{}, false
	}
	return Match{ID: id, URL: "https://www.youtube.com/watch?v=" + id}, true
}

func matchYouTube(in input) (Match, bool) {
	if in.u == nil {
		return youtubeMatch(in.raw)
	}

	switch in.host {
	case "youtu.be":
		if len(in.segs) == 0 {
			return Match{}, false
		}
		return youtubeMatch(in.segs[0])
	case "youtube.com", "youtube-nocookie.com":
		if len(in.segs) == 1 && in.segs[0] == "watch" {
			return youtubeMatch(in.u.Query().Get("v"))
		}
		if len(in.segs) >= 2 {
			switch in.segs[0] {
			case "embed", "shorts", "live", "v":
				return youtubeMatch(in.segs[1])
			}
		}
	}
	return Match{}, false
}

func matchVimeo(in input) (Match, bool) {
	if in.u == nil {
		return Match{}, false
	}

	var id string
	switch in.host {
	case "vimeo.com":
		// vimeo.com/ID, vimeo.com/channels/NAME/ID
		for _, s := range in.segs {
			if digitsRe.MatchString(s) {
				id = s
				break
			}
		}
	case "player.vimeo.com":
		if len(in.segs) >= 2 && in.segs[0] == "video" && digitsRe.MatchString(in.segs[1]) {
			id = in.segs[1]
		}
	}
	if id == "" {
		return Match{}, false
	}
	return Match{ID: id, URL: "https://vimeo.com/" + id}, true
}

var twitchReserved = map[string]struct{}{
	"directory": {}, "videos": {}, "settings": {}, "p": {}, "downloads": {},
	"jobs": {}, "search": {}, "subscriptions": {}, "inventory": {}, "wallet": {},
}

func matchTwitch(in input) (Match, bool) {
	if in.u == nil || in.host != "twitch.tv" || len(in.segs) == 0 {
		return Match{}, false
	}

	if in.segs[0] == "videos" {
		if len(in.segs) < 2 || !digitsRe.MatchString(in.segs[1]) {
			return Match{}, false
		}
		return Match{ID: in.segs[1], URL: "https://www.twitch.tv/videos/" + in.segs[1]}, true
	}

	ch := strings.ToLower(in.segs[0])
	if _, reserved := twitchReserved[ch]; reserved || len(in.segs) > 1 || !twitchChanRe.MatchString(ch) {
		return Match{}, false
	}
	return Match{ID: ch, URL: "https://www.twitch.tv/" + ch, Live: true}, true
}

func matchDailymotion(in input) (Match, bool) {
	if in.u == nil {
		return Match{}, false
	}

	var id string
	switch in.host {
	case "dailymotion.com":
		if len(in.segs) >= 2 && in.segs[0] == "video" {
			id = in.segs[1]
		} else if len(in.segs) >= 3 && in.segs[0] == "embed" && in.segs[1] == "video" {
			id = in.segs[2]
		}
	case "dai.ly":
		if len(in.segs) >= 1 {
			id = in.segs[0]
		}
	}
	// old style ids carry a slug: x7tgad0_some-title
	if i := strings.IndexByte(id, '_'); i > 0 {
		id = id[:i]
	}
	if !dailymotionRe.MatchString(id) {
		return Match{}, false
	}
	return Match{ID: id, URL: "https://www.dailymotion.com/video/" + id}, true
}
