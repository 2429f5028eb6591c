package mime

import (
	stdmime "mime"
	"path/filepath"
	"strings"
)

const (
	AssetImage    = "image"
	AssetVideo    = "video"
	AssetAudio    = "audio"
	AssetDocument = "document"
	AssetArchive  = "archive"
	AssetFont     = "font"
)

const octetStream = "application/octet-stream"

var documentTypes = map[string]bool{
	"application/pdf":                                 true,
	"application/rtf":                                 true,
	"application/json":                                true,
	"application/xml":                                 true,
	"application/msword":                              true,
	"application/vnd.ms-excel":                        true,
	"application/vnd.ms-powerpoint":                   true,
	"application/vnd.oasis.opendocument.text":         true,
	"application/vnd.oasis.opendocument.spreadsheet":  true,
	"application/vnd.oasis.opendocument.presentation": true,
	"application/epub+zip":                            true,
	"application/postscript":                          true,
	"application/x-indesign":                          true,
	"application/illustrator":                         true,
}

var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-7z-compressed":  true,
	"application/x-rar-compressed": true,
	"application/vnd.rar":          true,
	"application/x-bzip2":          true,
	"application/x-xz":             true,
}

// Essence strips parameters and lowercases a media type: "Text/Plain; charset=utf-8" -> "text/plain".
func Essence(mt string) string {
	if mt == "" {
		return ""
	}
	if parsed, _, err := stdmime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(strings.SplitN(mt, ";", 2)[0]))
}

// Resolve picks the effective media type for an upload. A declared type wins unless
// it is missing or generic, in which case the content is sniffed.
func Resolve(declared string, content []byte, filename string) string {
	d := Essence(declared)
	if d != "" && d != octetStream && d != "binary/octet-stream" && strings.Contains(d, "/") {
		return d
	}
	if len(content) == 0 {
		return d
	}
	return Essence(DetectMimeType(content, filename))
}

// ClassifyAssetType maps a media type to an asset type. ok is false for
// unknown binary content, which callers must reject.
func ClassifyAssetType(mt string) (assetType string, ok bool) {
	e := Essence(mt)
	if e == "" || e == octetStream {
		return "", false
	}
	if documentTypes[e] {
		return AssetDocument, true
	}
	if archiveTypes[e] {
		return AssetArchive, true
	}

	major, minor, found := strings.Cut(e, "/")
	if !found || minor == "" {
		return "", false
	}
	switch major {
	case "image":
		return AssetImage, true
	case "video":
		return AssetVideo, true
	case "audio":
		return AssetAudio, true
	case "font":
		return AssetFont, true
	case "text":
		return AssetDocument, true
	case "application":
		if strings.HasPrefix(minor, "vnd.openxmlformats-officedocument.") {
			return AssetDocument, true
		}
		if strings.HasPrefix(minor, "font-") || strings.HasPrefix(minor, "x-font") {
			return AssetFont, true
		}
	}
	return "", false
}

// Format is the lowercase file extension without its dot, falling back to the
// media subtype when the filename has none.
func Format(filename, mt string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	e := Essence(mt)
	if _, minor, ok := strings.Cut(e, "/"); ok {
		if i := strings.LastIndexAny(minor, ".+-"); i >= 0 && i < len(minor)-1 {
			return minor[i+1:]
		}
		return minor
	}
	return ""
}
