package mime

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// textByExt narrows "text/plain" sniffs for text formats that carry no magic bytes.
var textByExt = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".csv":      "text/csv",
	".tsv":      "text/tab-separated-values",
	".srt":      "application/x-subrip",
	".vtt":      "text/vtt",
	".json":     "application/json",
	".xml":      "application/xml",
	".svg":      "image/svg+xml",
	".html":     "text/html",
	".htm":      "text/html",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".eps":      "application/postscript",
}

// binaryByExt names production formats that sniff as plain octet-stream.
var binaryByExt = map[string]string{
	".indd": "application/x-indesign",
	".idml": "application/vnd.adobe.indesign-idml-package",
	".ai":   "application/illustrator",
	".cr2":  "image/x-canon-cr2",
	".cr3":  "image/x-canon-cr3",
	".nef":  "image/x-nikon-nef",
	".arw":  "image/x-sony-arw",
	".dng":  "image/x-adobe-dng",
	".raf":  "image/x-fuji-raf",
	".braw": "video/x-blackmagic-raw",
	".r3d":  "video/x-red-r3d",
	".otf":  "font/otf",
	".ttf":  "font/ttf",
}

// DetectMimeType sniffs content with mimetype and refines generic results by
// the filename extension. Charset parameters of text types are kept.
func DetectMimeType(content []byte, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	detected := mimetype.Detect(content).String()

	switch {
	case strings.HasPrefix(detected, "text/plain"):
		if refined, ok := textByExt[ext]; ok {
			return strings.Replace(detected, "text/plain", refined, 1)
		}
	case detected == octetStream:
		if refined, ok := binaryByExt[ext]; ok {
			return refined
		}
	}
	return detected
}
