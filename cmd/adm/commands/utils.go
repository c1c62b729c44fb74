package commands

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"supportapp/internal/models"
	contextutils "supportapp/internal/utils"
)

// readInput reads the named file, or stdin when path is "-"
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to read %s", path)
	}
	return data, nil
}

// writeOutput writes data to the named file, or to out when path is empty
func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return contextutils.WrapErrorf(err, "failed to write %s", path)
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadAttachment reads a file into an attachment, sniffing its media type from the content
func loadAttachment(path string) (models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, contextutils.WrapErrorf(err, "failed to read attachment %s", path)
	}
	mediaType := http.DetectContentType(data)
	if filepath.Ext(path) == ".har" {
		mediaType = "application/json"
	}
	return models.Attachment{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Data:      data,
		Size:      int64(len(data)),
	}, nil
}
