// Package tsv reads and writes the tab-separated files exchanged between
// integration passes. Paths ending in ".sz" are transparently wrapped in the
// snappy framing format.
package tsv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/dd0wney/microbekg/pkg/logging"
)

// CompressedSuffix marks snappy-framed files.
const CompressedSuffix = ".sz"

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing column")

// IsCompressed reports whether path uses snappy framing.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// Reader streams rows from a TSV file with a header row.
type Reader struct {
	file   *os.File
	csv    *csv.Reader
	header []string
	index  map[string]int
	line   int
}

// Open opens path and consumes its header row.
func Open(path string) (*Reader, error) {
	return open(path, nil)
}

// OpenLatin1 is Open for ISO-8859-1 encoded files. Cells are returned as
// UTF-8.
func OpenLatin1(path string) (*Reader, error) {
	return open(path, charmap.ISO8859_1.NewDecoder())
}

func open(path string, dec *encoding.Decoder) (*Reader, error) {
	file, r, err := openCSV(path, dec)
	if err != nil {
		return nil, err
	}

	header, err := r.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file, expected a header row", path)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return newReader(file, r, header, 1), nil
}

// OpenWithHeader opens a headerless data file whose columns are described
// by header, as in split neo4j-admin style exports.
func OpenWithHeader(path string, header []string) (*Reader, error) {
	file, r, err := openCSV(path, nil)
	if err != nil {
		return nil, err
	}
	return newReader(file, r, header, 0), nil
}

// ReadHeader returns the first row of path.
func ReadHeader(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Header(), nil
}

func openCSV(path string, dec *encoding.Decoder) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var src io.Reader = bufio.NewReaderSize(file, 1<<20)
	if IsCompressed(path) {
		src = snappy.NewReader(src)
	}
	if dec != nil {
		src = dec.Reader(src)
	}

	r := csv.NewReader(src)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return file, r, nil
}

func newReader(file *os.File, r *csv.Reader, header []string, line int) *Reader {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	return &Reader{file: file, csv: r, header: header, index: index, line: line}
}

// Header returns the header columns.
func (r *Reader) Header() []string {
	return r.header
}

// Has reports whether the header contains column.
func (r *Reader) Has(column string) bool {
	_, ok := r.index[column]
	return ok
}

// Require fails with ErrMissingColumn naming every absent column.
func (r *Reader) Require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !r.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Next returns the next row, or io.EOF when the file is exhausted.
func (r *Reader) Next() ([]string, error) {
	row, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	return row, nil
}

// Line is the 1-based line number of the row last returned by Next.
func (r *Reader) Line() int {
	return r.line
}

// Field returns the value of column in row, or "" if the column is absent
// or the row is short.
func (r *Reader) Field(row []string, column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll loads every row of path, header excluded.
func ReadAll(path string) (header []string, rows [][]string, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", path, r.Line()+1, err)
		}
		rows = append(rows, append([]string(nil), row...))
	}
	return r.Header(), rows, nil
}

// Writer writes rows to a temporary sibling of the target path; Close
// renames it into place so readers never observe a partial file.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File
	buf     *bufio.Writer
	snappy  *snappy.Writer
	csv     *csv.Writer
	rows    int
}

// Create opens a writer for path and writes header if it is non-empty.
func Create(path string, header []string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}

	w := &Writer{path: path, tmpPath: tmp.Name(), file: tmp, buf: bufio.NewWriterSize(tmp, 1<<20)}

	var dst io.Writer = w.buf
	if IsCompressed(path) {
		w.snappy = snappy.NewBufferedWriter(w.buf)
		dst = w.snappy
	}
	w.csv = csv.NewWriter(dst)
	w.csv.Comma = '\t'

	if len(header) > 0 {
		if err := w.csv.Write(header); err != nil {
			w.Abort()
			return nil, fmt.Errorf("failed to write header of %s: %w", path, err)
		}
	}
	return w, nil
}

// Write appends one row.
func (w *Writer) Write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", w.rows+1, w.path, err)
	}
	w.rows++
	return nil
}

// Rows is the number of data rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// Close flushes, syncs and atomically moves the file to its final path.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	if w.snappy != nil {
		if err := w.snappy.Close(); err != nil {
			w.Abort()
			return fmt.Errorf("failed to close snappy stream for %s: %w", w.path, err)
		}
	}
	if err := w.buf.Flush(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", w.path, err)
	}
	return nil
}

// Abort discards everything written; the target path is left untouched.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.tmpPath)
}

// CheckFiles logs every path that does not exist and reports whether all do.
func CheckFiles(logger logging.Logger, paths ...string) bool {
	ok := true
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			logger.Error("input file does not exist", logging.Path(p), logging.Error(err))
			ok = false
		}
	}
	return ok
}
