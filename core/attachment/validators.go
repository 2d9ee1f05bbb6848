package attachment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/trezcool/masomo-lms/core"
)

const MaxFileSize int64 = 20 << 20 // 20 MB

var allowedExtensions = map[string]bool{
	// images
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "svg": true,
	// documents
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true, "ppt": true, "pptx": true,
	"odt": true, "ods": true, "odp": true,
	// text
	"txt": true, "md": true, "rtf": true, "csv": true,
	// archives
	"zip": true,
}

// Extension returns the lowercased extension of filename, without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func ExtensionAllowed(ext string) bool {
	return allowedExtensions[ext]
}

// ValidateFiles checks every file against the size limit and the extension allow-list.
// Errors are reported as `<field>[i]`.
func ValidateFiles(field string, files []File) []core.FieldError {
	var errs []core.FieldError
	for i, f := range files {
		fld := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case f.Size > MaxFileSize:
			errs = append(errs, core.FieldError{
				Field: fld,
				Error: fmt.Sprintf("%q exceeds the maximum size of %d MB", f.Name, MaxFileSize>>20),
			})
		case !ExtensionAllowed(Extension(f.Name)):
			errs = append(errs, core.FieldError{
				Field: fld,
				Error: fmt.Sprintf("%q: file type not allowed", f.Name),
			})
		}
	}
	return errs
}
