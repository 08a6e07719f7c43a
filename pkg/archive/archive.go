// Package archive streams the contents of a Git tree as a tar archive,
// optionally compressed with gzip or zstd.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/gitbrowse/pkg/object"
	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// ChunkSize is the buffer size at which Stream hands data to the caller.
const ChunkSize = 32 << 10

// Format selects the archive container and compression.
type Format string

const (
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown archive format")

// ParseFormat accepts "tar", "tar.gz" (also "tgz", "gz") and "tar.zst"
// (also "zst"). The empty string means tar.gz.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "tar.gz", "tgz", "gz":
		return FormatTarGz, nil
	case "tar":
		return FormatTar, nil
	case "tar.zst", "zst", "tzst":
		return FormatTarZst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatTar:
		return "application/x-tar"
	case FormatTarZst:
		return "application/zstd"
	default:
		return "application/gzip"
	}
}

// Filename names the download for rev of repository name, for example
// "webapp@release-2-0.tar.gz". Slashes and dots in rev become dashes.
func Filename(name, rev string, f Format) string {
	clean := strings.NewReplacer("/", "-", ".", "-").Replace(rev)
	if f == "" {
		f = FormatTarGz
	}
	return name + "@" + clean + "." + string(f)
}

// Store is what Stream reads objects from; *object.Store implements it.
type Store interface {
	repo.TreeReader
	OpenBlob(h object.Hash) (*object.BlobReader, error)
}

// Options control the generated archive.
type Options struct {
	// MTime is stamped on every entry; usually the commit time.
	MTime  time.Time
	Format Format
	// Prefix is prepended to every path, for example "project/".
	Prefix string
}

var errStopped = errors.New("archive consumer stopped")

// Stream walks tree depth-first and yields the archive in chunks of about
// ChunkSize bytes, plus whatever is buffered after each entry. Regular
// files and symlinks are archived; submodules are skipped. The yielded
// slice is reused and only valid until the next iteration. Breaking out of
// the loop stops the walk.
func Stream(s Store, tree object.Hash, opts Options) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		out := &chunker{yield: yield}
		err := write(out, s, tree, opts)
		if out.stopped || errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}
		out.flush()
	}
}

func write(out *chunker, s Store, tree object.Hash, opts Options) error {
	format := opts.Format
	if format == "" {
		format = FormatTarGz
	}
	compressed, err := newCompressor(out, format)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(compressed)

	err = repo.WalkTree(s, tree, func(p string, e object.TreeEntry) error {
		if e.Kind() == object.KindTree || e.Kind() == object.KindGitlink {
			return nil
		}
		if err := writeEntry(tw, s, opts.Prefix+p, e, opts.MTime); err != nil {
			return err
		}
		if !out.flush() {
			return errStopped
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return compressed.Close()
}

func writeEntry(tw *tar.Writer, s Store, name string, e object.TreeEntry, mtime time.Time) error {
	blob, err := s.OpenBlob(e.Hash)
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	defer blob.Close()

	hdr := &tar.Header{
		Name:    name,
		ModTime: mtime,
		Mode:    0o644,
		Format:  tar.FormatPAX,
	}
	switch e.Kind() {
	case object.KindSymlink:
		target, err := io.ReadAll(blob)
		if err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = string(target)
		hdr.Mode = 0o777
		return tw.WriteHeader(hdr)
	default:
		if e.Mode == object.TreeModeExecutable {
			hdr.Mode = 0o755
		}
		hdr.Typeflag = tar.TypeReg
		hdr.Size = blob.Size()
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := io.Copy(tw, blob); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}

func newCompressor(w io.Writer, f Format) (io.WriteCloser, error) {
	switch f {
	case FormatTar:
		return nopCloser{w}, nil
	case FormatTarGz:
		return gzip.NewWriter(w), nil
	case FormatTarZst:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// chunker buffers archive bytes and hands them to yield once ChunkSize is
// reached.
type chunker struct {
	buf     []byte
	yield   func([]byte, error) bool
	stopped bool
}

func (c *chunker) Write(p []byte) (int, error) {
	if c.stopped {
		return 0, errStopped
	}
	c.buf = append(c.buf, p...)
	if len(c.buf) >= ChunkSize && !c.flush() {
		return 0, errStopped
	}
	return len(p), nil
}

// flush yields the buffered bytes, if any. It reports false once the
// consumer has stopped.
func (c *chunker) flush() bool {
	if c.stopped {
		return false
	}
	if len(c.buf) == 0 {
		return true
	}
	if !c.yield(c.buf, nil) {
		c.stopped = true
		return false
	}
	c.buf = c.buf[:0]
	return true
}
