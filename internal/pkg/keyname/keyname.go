// Package keyname builds object-store keys for an uploaded asset and its derivatives.
package keyname

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

const (
	RoleOriginal  = "original"
	RoleThumbnail = "thumbnail"
	RolePreview   = "preview"

	maxStemLen   = 48
	fallbackStem = "file"
	derivedExt   = ".jpg"
)

// Keys are the three storage keys of one upload. They share a timestamp and
// random component so they sort and list together.
type Keys struct {
	Original  string
	Thumbnail string
	Preview   string
}

type Namer struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
}

type Option func(*Namer)

func WithClock(now func() time.Time) Option {
	return func(n *Namer) { n.now = now }
}

func WithRandom(r io.Reader) Option {
	return func(n *Namer) { n.rand = r }
}

func New(prefix string, opts ...Option) *Namer {
	n := &Namer{
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		rand:   rand.Reader,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Name returns keys laid out as
// {prefix}/{assetType}/{actorID}/{yyyy}/{mm}/{unixMillis}-{random}-{stem}-{role}{ext}.
func (n *Namer) Name(filename, assetType, actorID string) (Keys, error) {
	var buf [6]byte
	if _, err := io.ReadFull(n.rand, buf[:]); err != nil {
		return Keys{}, fmt.Errorf("read random: %w", err)
	}
	nonce := hex.EncodeToString(buf[:])

	now := n.now().UTC()
	ext := SanitizeComponent(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext != "" {
		ext = "." + ext
	}
	stem := Stem(filename)

	dir := strings.Join([]string{
		orDefault(SanitizeComponent(assetType), "other"),
		orDefault(SanitizeComponent(actorID), "anonymous"),
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
	}, "/")
	if n.prefix != "" {
		dir = n.prefix + "/" + dir
	}
	base := fmt.Sprintf("%s/%d-%s-%s", dir, now.UnixMilli(), nonce, stem)

	return Keys{
		Original:  base + "-" + RoleOriginal + ext,
		Thumbnail: base + "-" + RoleThumbnail + derivedExt,
		Preview:   base + "-" + RolePreview + derivedExt,
	}, nil
}

// Stem is the sanitised filename without directory and extension.
func Stem(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	s := SanitizeComponent(name)
	if len(s) > maxStemLen {
		s = strings.Trim(s[:maxStemLen], "-_")
	}
	return orDefault(s, fallbackStem)
}

// SanitizeComponent lowercases s, turns whitespace and dots into '-', drops
// anything outside [a-z0-9-_] and collapses repeated dashes.
func SanitizeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == ' ' || r == '.' || r == '\t':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
