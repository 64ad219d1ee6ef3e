package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/username/portafolio/backend/src/logger"
)

// ErrValidationFailed is wrapped by every rejection in this package.
var ErrValidationFailed = errors.New("validation failed")

const MaxBrokerKeyLength = 50

// AllowedExtensions are the statement containers accepted at upload time.
// Whether a broker actually supports one is decided later by the parsers.
var AllowedExtensions = []string{".xlsx", ".xls", ".csv", ".html", ".htm"}

// allowedDetectedTypes maps an extension to the sniffed content types consistent with it.
// Legacy .xls exports are often HTML tables, so text types are accepted there too.
var allowedDetectedTypes = map[string][]string{
	".xlsx": {"application/zip", "application/octet-stream"},
	".xls":  {"application/octet-stream", "text/html", "text/plain", "text/xml"},
	".csv":  {"text/plain", "text/csv", "application/octet-stream"},
	".html": {"text/html", "text/plain", "text/xml"},
	".htm":  {"text/html", "text/plain", "text/xml"},
}

// UploadRequest is what the client declared about an upload.
type UploadRequest struct {
	FileName    string
	SizeInBytes int64
	BrokerKey   string
}

// ValidateUploadRequest checks the declared file and broker. All problems are reported
// together in one error wrapping ErrValidationFailed.
func ValidateUploadRequest(req UploadRequest, maxSizeBytes int64, supportedBrokers []string) error {
	var problems []string

	if strings.TrimSpace(req.FileName) == "" {
		problems = append(problems, "file is required")
	} else if ext := strings.ToLower(filepath.Ext(req.FileName)); !slices.Contains(AllowedExtensions, ext) {
		problems = append(problems, fmt.Sprintf("file extension %q is not allowed (allowed: %s)", ext, strings.Join(AllowedExtensions, ", ")))
	}

	switch {
	case req.SizeInBytes <= 0:
		problems = append(problems, "file is empty")
	case maxSizeBytes > 0 && req.SizeInBytes > maxSizeBytes:
		problems = append(problems, fmt.Sprintf("file is %s, larger than the %s limit",
			humanize.Bytes(uint64(req.SizeInBytes)), humanize.Bytes(uint64(maxSizeBytes))))
	}

	broker := strings.TrimSpace(req.BrokerKey)
	switch {
	case broker == "":
		problems = append(problems, "broker key is required")
	case len(broker) > MaxBrokerKeyLength:
		problems = append(problems, fmt.Sprintf("broker key cannot exceed %d characters", MaxBrokerKeyLength))
	case !containsFold(supportedBrokers, broker):
		problems = append(problems, fmt.Sprintf("broker %q is not supported (supported: %s)", broker, strings.Join(supportedBrokers, ", ")))
	}

	if len(problems) == 0 {
		return nil
	}
	logger.L.Warn("Upload request rejected", "fileName", req.FileName, "brokerKey", req.BrokerKey, "problems", problems)
	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ValidateFileContentByMagicBytes sniffs the first bytes of file and checks they are
// consistent with the extension of fileName. The read position is restored.
// It returns the detected content type.
func ValidateFileContentByMagicBytes(file io.ReadSeeker, fileName string) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// The parser needs to read the file from the start.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(allowedDetectedTypes[ext], detectedContentType) {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "fileName", fileName, "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("%w: detected file content type '%s' is not consistent with a %s file",
			ErrValidationFailed, detectedContentType, ext)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
