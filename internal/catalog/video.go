package catalog

import (
	"errors"
	"path"
	"regexp"
	"strings"
)

// Video providers recognised by DeriveVideo.
const (
	ProviderYouTube = "youtube"
	ProviderVimeo   = "vimeo"
	ProviderStorage = "storage"
	ProviderLink    = "link"
)

var ErrVideoURLRequired = errors.New("la url del video es obligatoria")

var (
	youtubePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|live/|v/))([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`(?i)youtu\.be/([A-Za-z0-9_-]{11})`),
	}
	vimeoPattern = regexp.MustCompile(`(?i)vimeo\.com/(?:video/|channels/[^/]+/|groups/[^/]+/videos/)?(\d+)`)
)

// MediaSelection is what the media collaborator returns for a pick or upload.
type MediaSelection struct {
	URL        string `json:"url"`
	ProviderID string `json:"providerId,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// DeriveVideo builds a VideoRef from sel, extracting the provider id from
// the url when the collaborator did not supply one.
func DeriveVideo(sel MediaSelection) (VideoRef, error) {
	raw := strings.TrimSpace(sel.URL)
	if raw == "" {
		return VideoRef{}, ErrVideoURLRequired
	}
	ref := VideoRef{
		URL:        raw,
		Provider:   sel.Provider,
		ProviderID: strings.TrimSpace(sel.ProviderID),
		FileName:   sel.FileName,
		Thumbnail:  sel.Thumbnail,
	}
	if ref.Provider == "" || ref.ProviderID == "" {
		provider, id := providerFromURL(raw)
		if ref.Provider == "" {
			ref.Provider = provider
		}
		if ref.ProviderID == "" {
			ref.ProviderID = id
		}
	}
	if ref.Thumbnail == "" && ref.Provider == ProviderYouTube && ref.ProviderID != "" {
		ref.Thumbnail = "https://img.youtube.com/vi/" + ref.ProviderID + "/hqdefault.jpg"
	}
	if ref.FileName == "" && ref.Provider == ProviderStorage {
		ref.FileName = path.Base(ref.ProviderID)
	}
	return ref, nil
}

func providerFromURL(raw string) (string, string) {
	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return ProviderYouTube, m[1]
		}
	}
	if m := vimeoPattern.FindStringSubmatch(raw); m != nil {
		return ProviderVimeo, m[1]
	}
	if strings.HasPrefix(raw, "s3://") {
		return ProviderStorage, strings.TrimPrefix(raw, "s3://")
	}
	return ProviderLink, ""
}
