// Package objectkey generates the logical path a new file is stored under.
package objectkey

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"time"
)

// Generator defines the interface for logical path generation strategies
type Generator interface {
	// GenerateKey returns a relative, slash-separated path for a new file
	GenerateKey(meta KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	UID         string
	FileName    string
	ContentType string
	CreatedAt   time.Time
}

// Layout names accepted by NewGenerator
const (
	LayoutDated   = "dated"
	LayoutLegacy  = "legacy"
	LayoutGitLike = "git-like"
	LayoutHashed  = "hashed"
)

// Layouts lists the names accepted by NewGenerator
func Layouts() []string {
	return []string{LayoutDated, LayoutLegacy, LayoutGitLike, LayoutHashed}
}

// NewGenerator returns the generator of a named layout. An empty name selects
// the dated layout.
func NewGenerator(layout string) (Generator, error) {
	switch layout {
	case "", LayoutDated:
		return NewDatedGenerator(), nil
	case LayoutLegacy:
		return NewLegacyGenerator(), nil
	case LayoutGitLike:
		return NewGitLikeGenerator(), nil
	case LayoutHashed:
		return NewHashedGitLikeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout: %s", layout)
	}
}

// DatedGenerator groups files by MIME major type and creation month:
// image/2024/05/<uid>.jpg
type DatedGenerator struct{}

func NewDatedGenerator() *DatedGenerator {
	return &DatedGenerator{}
}

func (g *DatedGenerator) GenerateKey(meta KeyMetadata) string {
	major, _, _ := strings.Cut(meta.ContentType, "/")
	if major == "" {
		major = "application"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s%s",
		major, meta.CreatedAt.Year(), int(meta.CreatedAt.Month()), meta.UID, strings.ToLower(Ext(meta.FileName)))
}

// LegacyGenerator keeps the flat F/<uid>/<filename> structure
type LegacyGenerator struct{}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{}
}

func (g *LegacyGenerator) GenerateKey(meta KeyMetadata) string {
	if meta.FileName != "" {
		return fmt.Sprintf("F/%s/%s", meta.UID, sanitizeFilename(meta.FileName))
	}
	return fmt.Sprintf("F/%s", meta.UID)
}

// GitLikeGenerator provides Git-style sharding on the uid:
// objects/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{ShardLength: 2}
}

func (g *GitLikeGenerator) GenerateKey(meta KeyMetadata) string {
	return shardedKey(strings.ReplaceAll(meta.UID, "-", ""), g.ShardLength, meta.FileName)
}

// HashedGitLikeGenerator shards on a hash of the uid, which spreads uids
// that share a prefix
type HashedGitLikeGenerator struct {
	ShardLength int
}

func NewHashedGitLikeGenerator() *HashedGitLikeGenerator {
	return &HashedGitLikeGenerator{ShardLength: 2}
}

func (g *HashedGitLikeGenerator) GenerateKey(meta KeyMetadata) string {
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(meta.UID)))
	return shardedKey(hash[:16], g.ShardLength, meta.FileName)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(meta KeyMetadata) string

func (f GeneratorFunc) GenerateKey(meta KeyMetadata) string {
	return f(meta)
}

func shardedKey(id string, shardLength int, fileName string) string {
	if shardLength <= 0 {
		shardLength = 2
	}
	if len(id) <= shardLength {
		shardLength = len(id) / 2
	}

	filename := id[shardLength:]
	if fileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(fileName))
	}
	return fmt.Sprintf("objects/%s/%s", id[:shardLength], filename)
}

// Ext returns the extension of the last path element including its dot.
// Leading dots of the base name do not start an extension.
func Ext(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	trimmed := strings.TrimLeft(base, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return ""
	}
	return trimmed[i:]
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
)

// sanitizeFilename replaces characters that are awkward in paths and URLs
func sanitizeFilename(filename string) string {
	return filenameReplacer.Replace(filename)
}
