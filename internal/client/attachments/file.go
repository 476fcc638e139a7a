package attachments

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/filex"
)

// OpenFile opens a local file for sending. The content type comes from the
// extension, or is sniffed from the first bytes when the extension is unknown.
// The caller closes the returned file.
func OpenFile(path string) (File, *os.File, error) {
	size, err := filex.Stat(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	fh, err := os.Open(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	f := File{Name: filepath.Base(path), Size: size, Body: fh}
	f.ContentType = contentType(f)
	if f.ContentType == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(fh, head)
		f.ContentType = http.DetectContentType(head[:n])
		if _, err := fh.Seek(0, io.SeekStart); err != nil {
			_ = fh.Close()
			return File{}, nil, err
		}
	}
	return f, fh, nil
}
