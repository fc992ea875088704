package xl

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage receives the package parts produced by Workbook.Close.
type Storage interface {
	WriteBlob(path string, blob []byte) error
}

// DirStorage writes Excel file parts to a directory structure on disk.
// The disk-staged close path uses it as the intermediate layout, and it is
// handy for inspecting generated XML.
type DirStorage struct {
	Dir string // Root directory path
}

// ZipStorage writes parts as deflated entries of a ZIP archive.
type ZipStorage struct {
	z *zip.Writer
}

// NewDirStorage returns a storage rooted at dir. Missing directories are
// created on write.
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{
		Dir: dir,
	}
}

// WriteBlob stores blob at the slash-separated part path below Dir.
func (ds *DirStorage) WriteBlob(path string, blob []byte) error {
	path = strings.TrimPrefix(path, "/")
	fn := filepath.Join(ds.Dir, filepath.FromSlash(path))
	err := os.MkdirAll(filepath.Dir(fn), 0777)
	if err != nil {
		return err
	}
	return os.WriteFile(fn, blob, 0666)
}

// NewZipStorage starts an archive on out.
func NewZipStorage(out io.Writer) *ZipStorage {
	return &ZipStorage{z: zip.NewWriter(out)}
}

// WriteBlob adds one entry. A leading slash is dropped from path.
func (zs *ZipStorage) WriteBlob(path string, blob []byte) error {
	path = strings.TrimPrefix(path, "/")
	f, err := zs.z.Create(path)
	if err != nil {
		return err
	}
	_, err = f.Write(blob)
	return err
}

// Close writes the central directory. The archive is unreadable without it.
func (zs *ZipStorage) Close() error {
	return zs.z.Close()
}

// ZipDir archives every regular file below dir into out. Entry names are
// slash-separated paths relative to dir and entries are stored without
// compression.
func ZipDir(dir string, out io.Writer) error {
	z := zip.NewWriter(out)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := z.CreateHeader(&zip.FileHeader{
			Name:   filepath.ToSlash(rel),
			Method: zip.Store,
		})
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		z.Close()
		return err
	}
	return z.Close()
}
