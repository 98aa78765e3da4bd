package resume

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// Extractor pulls plain text out of uploaded resume files. Structured
// extraction (experience, skills) happens upstream; the pipeline receives
// that as a parsed payload alongside the file.
type Extractor struct {
	uploadsDir string
}

// ExtractedFile is the stored-file metadata plus its extracted text.
type ExtractedFile struct {
	Filename string
	FileType string
	FileSize int64
	Text     string
}

func NewExtractor(uploadsDir string) *Extractor {
	return &Extractor{uploadsDir: uploadsDir}
}

// ExtractText saves the upload and extracts text from PDF/DOCX/TXT files.
func (e *Extractor) ExtractText(filename string, reader io.Reader) (*ExtractedFile, error) {
	if err := os.MkdirAll(e.uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	filePath := filepath.Join(e.uploadsDir, filepath.Base(filename))

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	fileType := strings.ToLower(filepath.Ext(filename))
	var text string

	switch fileType {
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		res, err := docconv.ConvertPath(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse document: %w", err)
		}
		text = res.Body
	case ".txt":
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read text file: %w", err)
		}
		text = string(content)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}

	return &ExtractedFile{
		Filename: filename,
		FileType: fileType,
		FileSize: size,
		Text:     text,
	}, nil
}
