package imagegen

import "fmt"

// Style is an illustration style preset
type Style string

const (
	StyleAnime     Style = "anime"
	StyleRealistic Style = "realistic"
	StyleFantasy   Style = "fantasy"
	StyleSketch    Style = "sketch"
)

// DefaultStyle is used when a request names none
const DefaultStyle = StyleFantasy

var stylePrompts = map[Style]string{
	StyleAnime:     "anime style, manga, japanese animation, vibrant colors, clean lines",
	StyleRealistic: "photorealistic, detailed, 8k uhd, realistic lighting, professional photography",
	StyleFantasy:   "fantasy art, digital painting, epic, dramatic lighting, detailed",
	StyleSketch:    "sketch, pencil drawing, line art, black and white, artistic",
}

// ParseStyle validates s; an empty string yields DefaultStyle
func ParseStyle(s string) (Style, error) {
	if s == "" {
		return DefaultStyle, nil
	}
	if _, ok := stylePrompts[Style(s)]; !ok {
		return "", fmt.Errorf("unknown style %q", s)
	}
	return Style(s), nil
}

// Apply prefixes prompt with the style's keywords
func (s Style) Apply(prompt string) string {
	prefix, ok := stylePrompts[s]
	if !ok {
		prefix = stylePrompts[DefaultStyle]
	}
	return prefix + ", " + prompt
}
