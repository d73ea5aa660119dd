package arscwriter

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// TableFileName is the path of the resource table inside an APK.
const TableFileName = "resources.arsc"

// Tables are capped at this size when extracted from an archive, as a
// guard against crafted size fields.
const maxTableSize = 256 * 1024 * 1024

// ExtractTable reads the raw resource table out of the APK at path.
func ExtractTable(apkPath string) ([]byte, error) {
	f, err := os.Open(apkPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ExtractTableReader(f)
}

// ExtractTableReader reads the raw resource table out of an APK. It first
// tries a regular central-directory read; if that fails it falls back to
// scanning for local file headers, which recovers tables from archives
// Android accepts but archive/zip rejects.
func ExtractTableReader(r io.ReadSeeker) ([]byte, error) {
	data, zipErr := extractFromCentralDir(r)
	if zipErr == nil {
		return data, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, scanErr := extractFromLocalHeaders(r)
	if scanErr != nil {
		return nil, errors.Wrapf(scanErr, "no readable %s (central directory: %s)", TableFileName, zipErr.Error())
	}
	return data, nil
}

// ParseTableFromAPK extracts and decodes the resource table of an APK in
// one step.
func ParseTableFromAPK(apkPath string) (*ParsedTable, error) {
	raw, err := ExtractTable(apkPath)
	if err != nil {
		return nil, err
	}
	return ParseTable(bytes.NewReader(raw))
}

func extractFromCentralDir(r io.ReadSeeker) (data []byte, err error) {
	// archive/zip can panic on some crafted archives.
	defer func() {
		if pn := recover(); pn != nil {
			data = nil
			err = fmt.Errorf("%v", pn)
		}
	}()

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(&readAtWrapper{r}, size)
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, newFlateReader)

	for _, zf := range zr.File {
		if path.Clean(zf.Name) != TableFileName {
			continue
		}
		if zf.Method != zip.Store && zf.Method != zip.Deflate {
			// Android stores the table uncompressed and ignores a bogus
			// method field, so follow it.
			zf.Method = zip.Store
			zf.CompressedSize64 = zf.UncompressedSize64
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		data, err := ioutil.ReadAll(io.LimitReader(rc, maxTableSize))
		rc.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", TableFileName)
}

// extractFromLocalHeaders walks PK\x03\x04 signatures directly. Later
// entries with the same name shadow earlier ones, which is the order the
// runtime resolves duplicates in.
func extractFromLocalHeaders(r io.ReadSeeker) ([]byte, error) {
	type candidate struct {
		offset int64
		method uint16
	}
	var found []candidate

	var off int64
	for {
		var err error
		off, err = findNextFileHeader(r)
		if off == -1 || err != nil {
			break
		}

		var method, nameLen, extraLen uint16
		if _, err = r.Seek(off+8, io.SeekStart); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &method); err != nil {
			return nil, err
		}
		if _, err = r.Seek(off+26, io.SeekStart); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		if err = binary.Read(r, binary.LittleEndian, &extraLen); err != nil {
			return nil, err
		}

		name := make([]byte, nameLen)
		if _, err = r.Seek(off+30, io.SeekStart); err != nil {
			return nil, err
		}
		if _, err = io.ReadFull(r, name); err != nil {
			return nil, err
		}

		if path.Clean(string(name)) == TableFileName {
			found = append(found, candidate{
				offset: off + 30 + int64(nameLen) + int64(extraLen),
				method: method,
			})
		}

		if _, err = r.Seek(off+4, io.SeekStart); err != nil {
			return nil, err
		}
	}

	for i := len(found) - 1; i >= 0; i-- {
		if _, err := r.Seek(found[i].offset, io.SeekStart); err != nil {
			return nil, err
		}

		var body io.Reader = io.LimitReader(r, maxTableSize)
		var closer io.Closer
		if found[i].method != zip.Store {
			// anything but 0 is treated as deflate
			fr := flate.NewReader(body)
			body, closer = fr, fr
		}
		data, err := ioutil.ReadAll(body)
		if closer != nil {
			closer.Close()
		}
		if err == nil && len(data) >= chunkHeaderSize &&
			binary.LittleEndian.Uint16(data) == chunkTable {
			// Stored entries have no reliable length in the local header,
			// so trim to the table's own size field.
			if total := binary.LittleEndian.Uint32(data[4:]); total >= chunkHeaderSize && int64(total) <= int64(len(data)) {
				data = data[:total]
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%s not found", TableFileName)
}

func findNextFileHeader(f io.ReadSeeker) (offset int64, err error) {
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1, err
	}
	defer func() {
		if _, serr := f.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	buf := make([]byte, 64*1024)
	toCmp := []byte{0x50, 0x4B, 0x03, 0x04}

	ok := 0
	offset = start

	for {
		n, err := f.Read(buf)
		if err != nil && err != io.EOF {
			return -1, err
		}

		if n == 0 {
			return -1, nil
		}

		for i := 0; i < n; i++ {
			if buf[i] == toCmp[ok] {
				ok++
				if ok == len(toCmp) {
					offset += int64(i) - int64(len(toCmp)-1)
					return offset, nil
				}
			} else {
				ok = 0
			}
		}

		offset += int64(n)
	}
}

type readAtWrapper struct {
	io.ReadSeeker
}

func (wr *readAtWrapper) ReadAt(b []byte, off int64) (n int, err error) {
	if readerAt, ok := wr.ReadSeeker.(io.ReaderAt); ok {
		return readerAt.ReadAt(b, off)
	}

	oldpos, err := wr.Seek(0, io.SeekCurrent)
	if err != nil {
		return
	}

	if _, err = wr.Seek(off, io.SeekStart); err != nil {
		return
	}

	if n, err = io.ReadFull(wr, b); err != nil {
		return
	}

	_, err = wr.Seek(oldpos, io.SeekStart)
	return
}

var flateReaderPool sync.Pool

func newFlateReader(r io.Reader) io.ReadCloser {
	fr, ok := flateReaderPool.Get().(io.ReadCloser)
	if ok {
		fr.(flate.Resetter).Reset(r, nil)
	} else {
		fr = flate.NewReader(r)
	}
	return &pooledFlateReader{fr: fr}
}

type pooledFlateReader struct {
	mu sync.Mutex // guards Close and Read
	fr io.ReadCloser
}

func (r *pooledFlateReader) Read(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fr == nil {
		return 0, errors.New("Read after Close")
	}
	return r.fr.Read(p)
}

func (r *pooledFlateReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.fr != nil {
		err = r.fr.Close()
		flateReaderPool.Put(r.fr)
		r.fr = nil
	}
	return err
}
