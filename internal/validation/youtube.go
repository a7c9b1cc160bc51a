package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var youtubeIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YoutubeVideoID extracts the video id from youtu.be, /watch?v= and
// /embed/ links. It returns "" when link is not a recognizable video URL.
func YoutubeVideoID(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	}
	if !youtubeIDRegex.MatchString(id) {
		return ""
	}
	return id
}

// YoutubeEmbedURL returns the embeddable player URL for link, or "".
func YoutubeEmbedURL(link string) string {
	id := YoutubeVideoID(link)
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/embed/" + id
}

// ValidateYoutubeLink accepts an empty link or any recognizable video URL.
func ValidateYoutubeLink(link string) error {
	if strings.TrimSpace(link) == "" {
		return nil
	}
	if YoutubeVideoID(link) == "" {
		return fmt.Errorf("youtube link must be a valid YouTube video URL")
	}
	return nil
}
