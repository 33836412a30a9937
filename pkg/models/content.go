package models

import "strings"

// MediaKind tells how a post's content should be presented.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindText  MediaKind = "text"
)

// Media prefix tags are a wire-level convention on Post.Content: the tag must
// open the string and be immediately followed by an http(s) URL, otherwise
// the content is plain text.
const (
	tagImage = "(link-image)"
	tagVideo = "(link-video)"
	tagAudio = "(link-audio)"
)

// Classify resolves the media kind of a post's content and returns the kind
// together with the payload: the URL for tagged content, the full text
// otherwise. Tags are matched in order image, video, audio; the first match
// wins even if another tag occurs later in the string.
func Classify(content string) (MediaKind, string) {
	for _, t := range []struct {
		tag  string
		kind MediaKind
	}{
		{tagImage, KindImage},
		{tagVideo, KindVideo},
		{tagAudio, KindAudio},
	} {
		if strings.HasPrefix(content, t.tag+"http") {
			return t.kind, strings.TrimPrefix(content, t.tag)
		}
	}
	return KindText, content
}
