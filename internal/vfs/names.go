package vfs

import (
	"path"
	"strings"
)

// DefaultSyntax is used for file names without an extension.
const DefaultSyntax = "md"

// Split cleans p and returns its segments. The root yields no segments.
func Split(p string) []string {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// SplitName derives a note's title and syntax from a file name. The name is
// split on its last dot; the extension is lowercased. A name without an
// extension, with an empty one ("draft."), or whose only dot is the leading
// one (".profile") gets DefaultSyntax.
func SplitName(name string) (title, syntax string) {
	i := strings.LastIndexByte(name, '.')
	switch {
	case i <= 0:
		return name, DefaultSyntax
	case i == len(name)-1:
		return name[:i], DefaultSyntax
	}
	return name[:i], strings.ToLower(name[i+1:])
}

// lockKey identifies a target path for write serialization.
func lockKey(tenant string, parent []string, title, syntax string) string {
	return tenant + "\x00" + strings.Join(parent, "/") + "\x00" + title + "." + syntax
}
