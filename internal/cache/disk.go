package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Disk caches tiles in files under a local directory.
//
// Default layout: {path}/{layer}/{z}/{036}/{895}/{033}/{721}.{fmt}, with row
// and column zero-padded to six digits and split into directory pairs so no
// directory holds an unbounded number of entries ("safe"). The "portable"
// layout is the plain {path}/{layer}/{z}/{x}/{y}.{fmt}, and "quadtile"
// interleaves the row and column bits into quadkey digits chunked three to a
// directory.
type Disk struct {
	path  string
	umask fs.FileMode
	dirs  string
	gzip  bool
}

type DiskOptions struct {
	Umask *fs.FileMode // masked out of 0777/0666 when creating dirs and files; nil means 0022
	Dirs  string       // "safe" (default), "portable" or "quadtile"
	Gzip  bool
}

func NewDisk(path string, opts DiskOptions) (*Disk, error) {
	if opts.Dirs == "" {
		opts.Dirs = "safe"
	}
	switch opts.Dirs {
	case "safe", "portable", "quadtile":
	default:
		return nil, fmt.Errorf("unknown disk cache dirs scheme: %s", opts.Dirs)
	}
	umask := fs.FileMode(0022)
	if opts.Umask != nil {
		umask = *opts.Umask
	}
	return &Disk{path: path, umask: umask, dirs: opts.Dirs, gzip: opts.Gzip}, nil
}

func (c *Disk) dirMode() fs.FileMode  { return 0777 &^ c.umask }
func (c *Disk) fileMode() fs.FileMode { return 0666 &^ c.umask }

func (c *Disk) tilePath(key TileKey) string {
	ext := key.Format
	if c.gzip {
		ext += ".gz"
	}
	switch c.dirs {
	case "portable":
		return filepath.Join(c.path, key.Layer, fmt.Sprintf("%d", key.Zoom),
			fmt.Sprintf("%d", key.Column), fmt.Sprintf("%d.%s", key.Row, ext))
	case "quadtile":
		// One quadkey digit per zoom level plus one, row bit over column bit,
		// most significant first. The zoom is implied by the digit count, so
		// there is no zoom directory.
		quad := make([]byte, key.Zoom+1)
		for i := range quad {
			shift := key.Zoom - i
			bit := (key.Row>>shift&1)<<1 | key.Column>>shift&1
			quad[i] = byte('0' + bit)
		}
		parts := []string{c.path, key.Layer}
		for i := 0; i < len(quad); i += 3 {
			end := i + 3
			if end > len(quad) {
				end = len(quad)
			}
			parts = append(parts, string(quad[i:end]))
		}
		parts[len(parts)-1] += "." + ext
		return filepath.Join(parts...)
	default:
		col, row := fmt.Sprintf("%06d", key.Column), fmt.Sprintf("%06d", key.Row)
		return filepath.Join(c.path, key.Layer, fmt.Sprintf("%d", key.Zoom),
			col[:3], col[3:], row[:3], fmt.Sprintf("%s.%s", row[3:], ext))
	}
}

func (c *Disk) Read(_ context.Context, key TileKey) ([]byte, error) {
	path := c.tilePath(key)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if c.gzip {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	}
	return io.ReadAll(r)
}

func (c *Disk) Save(_ context.Context, key TileKey, body []byte, _ time.Duration) error {
	path := c.tilePath(key)
	if err := os.MkdirAll(filepath.Dir(path), c.dirMode()); err != nil {
		return err
	}

	if c.gzip {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		body = buf.Bytes()
	}

	// Write through a temp file so a concurrent read never sees a short tile.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, c.fileMode()); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (c *Disk) Remove(_ context.Context, key TileKey) error {
	err := os.Remove(c.tilePath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *Disk) lockPath(key TileKey) string {
	return c.tilePath(key) + ".lock"
}

func (c *Disk) Lock(ctx context.Context, key TileKey, staleAfter time.Duration) error {
	path := c.lockPath(key)
	if err := os.MkdirAll(filepath.Dir(path), c.dirMode()); err != nil {
		return err
	}
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, c.fileMode())
		if err == nil {
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return err
		}
		if st, serr := os.Stat(path); serr == nil && staleAfter > 0 && time.Since(st.ModTime()) > staleAfter {
			os.Remove(path)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *Disk) Unlock(_ context.Context, key TileKey) error {
	err := os.Remove(c.lockPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
