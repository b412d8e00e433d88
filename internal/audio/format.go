package audio

import (
	"bytes"
	"mime"
	"strings"

	"github.com/dhowden/tag"
)

// Format identifies an accepted input container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatM4A     Format = "m4a"
)

// mimeFormats maps accepted MIME types to containers.
var mimeFormats = map[string]Format{
	"audio/mpeg":      FormatMP3,
	"audio/mp3":       FormatMP3,
	"audio/mpeg3":     FormatMP3,
	"audio/x-mpeg-3":  FormatMP3,
	"audio/wav":       FormatWAV,
	"audio/x-wav":     FormatWAV,
	"audio/wave":      FormatWAV,
	"audio/vnd.wave":  FormatWAV,
	"audio/ogg":       FormatOGG,
	"audio/vorbis":    FormatOGG,
	"application/ogg": FormatOGG,
	"audio/mp4":       FormatM4A,
	"audio/m4a":       FormatM4A,
	"audio/x-m4a":     FormatM4A,
	"audio/aac":       FormatM4A,
}

// extFormats maps file extensions to MIME types for callers that only
// have a path.
var extFormats = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
	".oga": "audio/ogg",
	".m4a": "audio/mp4",
	".mp4": "audio/mp4",
	".aac": "audio/aac",
}

// MIMETypeForExt returns the MIME type for a file extension (with dot),
// or "" when the extension isn't an accepted audio container.
func MIMETypeForExt(ext string) string {
	return extFormats[strings.ToLower(ext)]
}

// needsSniff reports whether a declared type carries no information.
func needsSniff(mimeType string) bool {
	return mimeType == "" || mimeType == "application/octet-stream"
}

// ResolveFormat applies the upload policy: accepted audio MIME types map
// to their container, opaque types are sniffed from the content, and
// everything else is rejected before any decode work happens.
func ResolveFormat(data []byte, mimeType string) (Format, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if needsSniff(mt) {
		if f := Sniff(data); f != FormatUnknown {
			return f, nil
		}
		return FormatUnknown, &UnsupportedFormatError{MIMEType: mimeType}
	}
	if f, ok := mimeFormats[mt]; ok {
		return f, nil
	}
	return FormatUnknown, &UnsupportedFormatError{MIMEType: mimeType}
}

// Sniff guesses the container from magic bytes, falling back to the tag
// library's identifier for Ogg and MP4 families.
func Sniff(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		// Layer bits 00 are reserved in MPEG audio; ADTS uses them for AAC.
		if data[1]&0x06 == 0 {
			return FormatM4A
		}
		return FormatMP3
	}
	if len(data) < 11 {
		return FormatUnknown
	}
	format, fileType, err := tag.Identify(bytes.NewReader(data))
	if err != nil {
		return FormatUnknown
	}
	switch {
	case fileType == tag.OGG:
		return FormatOGG
	case fileType == tag.MP3:
		return FormatMP3
	case format == tag.MP4:
		return FormatM4A
	}
	return FormatUnknown
}

// ReadTitle returns the embedded title tag, or "" when there is none.
func ReadTitle(data []byte) string {
	meta, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title())
}
