// Package chat holds the client-side chat logic that does not depend on the
// GUI toolkit: message content parsing, the login retry flow, feedback
// tracking and the chat session state.
package chat

import (
	"regexp"
	"strings"

	"askforge-client/api"
)

// SegmentKind tags a piece of parsed message content.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
	SegmentAttachment
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentImage:
		return "image"
	case SegmentAttachment:
		return "attachment"
	default:
		return "text"
	}
}

// Segment is one displayable part of a message.
type Segment struct {
	Kind SegmentKind
	Text string // text segments

	Alt string // image segments
	URL string // image and attachment segments

	ID   string // attachment segments, "ANEXO_<n>"
	Name string
}

const (
	defaultImageAlt       = "Imagem"
	defaultAttachmentName = "Anexo"
)

// ![alt](url) or [ANEXO_n]
var contentPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)|\[ANEXO_(\d+)\]`)

// ParseContent splits message content into text, image and attachment
// segments in order. Markers missing from known stay in the output as
// literal text. Text between markers is trimmed and dropped when empty.
func ParseContent(content string, known map[string]api.KnowledgeAttachment) []Segment {
	var segments []Segment
	appendText := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, Segment{Kind: SegmentText, Text: s})
		}
	}

	last := 0
	for _, m := range contentPattern.FindAllStringSubmatchIndex(content, -1) {
		appendText(content[last:m[0]])
		last = m[1]

		if m[2] >= 0 {
			alt := content[m[2]:m[3]]
			if alt == "" {
				alt = defaultImageAlt
			}
			segments = append(segments, Segment{Kind: SegmentImage, Alt: alt, URL: content[m[4]:m[5]]})
			continue
		}

		key := "ANEXO_" + content[m[6]:m[7]]
		att, ok := known[key]
		if !ok {
			segments = append(segments, Segment{Kind: SegmentText, Text: content[m[0]:m[1]]})
			continue
		}
		name := att.Name
		if name == "" {
			name = defaultAttachmentName
		}
		segments = append(segments, Segment{Kind: SegmentAttachment, ID: key, URL: att.URL, Name: name})
	}
	appendText(content[last:])

	if len(segments) == 0 {
		return []Segment{{Kind: SegmentText, Text: strings.TrimSpace(content)}}
	}
	return segments
}

// PlainText renders segments back to a single string, using the alt text and
// attachment names in place of the markers. Used for notifications, the
// local history index and clipboard copies.
func PlainText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		switch s.Kind {
		case SegmentImage:
			parts = append(parts, "["+s.Alt+"]")
		case SegmentAttachment:
			parts = append(parts, "["+s.Name+"]")
		default:
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
