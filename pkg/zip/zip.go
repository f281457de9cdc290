package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

// Entry is one file in a job bundle. Exactly one of Data and Body is used;
// Body wins when both are set.
type Entry struct {
	Filename string
	Data     []byte
	Body     io.Reader
	Modified time.Time
}

// WriteArchive streams entries into a zip archive written to w.
func WriteArchive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.Filename, Method: zip.Deflate, Modified: entry.Modified}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", entry.Filename, err)
		}
		if entry.Body != nil {
			_, err = io.Copy(fw, entry.Body)
		} else {
			_, err = fw.Write(entry.Data)
		}
		if err != nil {
			return fmt.Errorf("zip: write %s: %w", entry.Filename, err)
		}
	}
	return zw.Close()
}
