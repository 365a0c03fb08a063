package archive

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ArchiveReader = (*ZipReader)(nil)

// ZipReader reads zip archives through their central directory, so
// entries can be opened in any order. Deflate, store and zstd entries
// are supported.
type ZipReader struct {
	maxEntries int
}

// NewZipReader creates a ZipReader. maxEntries <= 0 means no limit.
func NewZipReader(maxEntries int) *ZipReader {
	return &ZipReader{maxEntries: maxEntries}
}

// Open parses the archive's central directory.
func (r *ZipReader) Open(archive driven.FetchedArchive) (driven.EntryIterator, error) {
	zr, err := zip.NewReader(archive, archive.Size())
	if zr == nil {
		return nil, &domain.CorruptArchiveError{Err: err}
	}
	// A reader returned together with an error only flags insecure names;
	// those entries are rejected by path normalisation.
	if r.maxEntries > 0 && len(zr.File) > r.maxEntries {
		return nil, &domain.CorruptArchiveError{
			Err: fmt.Errorf("archive has %d entries, limit is %d", len(zr.File), r.maxEntries),
		}
	}

	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	return &zipIterator{files: zr.File}, nil
}

type zipIterator struct {
	files []*zip.File
	next  int
}

func (it *zipIterator) Next() (domain.ArchiveEntry, bool) {
	if it.next >= len(it.files) {
		return domain.ArchiveEntry{}, false
	}
	f := it.files[it.next]
	it.files[it.next] = nil
	it.next++

	return domain.ArchiveEntry{
		Path:             f.Name,
		IsDir:            f.FileInfo().IsDir(),
		UncompressedSize: f.UncompressedSize64,
		Open: func() (io.ReadCloser, error) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			return &checksumTolerantReader{ReadCloser: rc}, nil
		},
	}, true
}

// checksumTolerantReader marks CRC mismatches as tolerated. The zip
// reader only verifies the checksum at EOF, after all content was produced.
type checksumTolerantReader struct {
	io.ReadCloser
}

func (r *checksumTolerantReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && errors.Is(err, zip.ErrChecksum) {
		err = fmt.Errorf("%w: %v", domain.ErrPartialReadTolerated, err)
	}
	return n, err
}
