package core

import (
	"net/url"
	"path/filepath"
)

// EnforcedLocalPath returns a forced local path, relative to a directory.
//
// A configuration can be parsed from a remote URL, but some paths (the
// location of a disk cache, a style file) must be local to the server. When a
// remote configuration location is mixed with a local resource location, the
// resource path must carry an explicit "file://" prefix instead of an
// ambiguous absolute path such as "/tmp/tiles".
func EnforcedLocalPath(relpath, dirpath, context string) (string, error) {
	parsedRel, err := url.Parse(relpath)
	if err != nil {
		return "", NewErrorf(ErrCodeLocalPathRequired, "%s path must be a local file path, absolute or \"file://\", not %q", context, relpath)
	}
	parsedDir, err := url.Parse(dirpath)
	if err != nil {
		return "", NewErrorf(ErrCodeRemoteBaseDir, "%s path cannot be resolved against unparseable base %q", context, dirpath)
	}

	if parsedRel.Scheme != "" && parsedRel.Scheme != "file" {
		return "", NewErrorf(ErrCodeLocalPathRequired, "%s path must be a local file path, absolute or \"file://\", not %q", context, relpath)
	}

	if parsedDir.Scheme != "" && parsedDir.Scheme != "file" && parsedRel.Scheme != "file" {
		return "", NewErrorf(ErrCodeRemoteBaseDir, "%s path must start with \"file://\" in a remote configuration (%q relative to %s)", context, relpath, dirpath)
	}

	if parsedRel.Scheme == "file" {
		// file:// is an absolute local reference for the resource.
		return parsedRel.Path, nil
	}

	if parsedDir.Scheme == "file" {
		// file:// is an absolute local reference for the directory.
		// URL-join semantics, not a filesystem join.
		base := &url.URL{Path: parsedDir.Path}
		return base.ResolveReference(&url.URL{Path: parsedRel.Path}).Path, nil
	}

	// Nothing has a scheme, it's just local paths. An absolute path wins
	// outright, a relative one is joined onto the base directory.
	if filepath.IsAbs(relpath) {
		return relpath, nil
	}
	return filepath.Join(dirpath, relpath), nil
}
