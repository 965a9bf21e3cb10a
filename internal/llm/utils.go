package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/pharmstack/invoice-ledger/constants"
)

// CleanJSON strips markdown code fences and surrounding noise from a model
// response so the remainder can be unmarshalled directly.
func CleanJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	// Models sometimes prepend prose before the object or array.
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		obj := strings.IndexAny(s, "{[")
		if obj >= 0 {
			s = s[obj:]
		}
	}
	return []byte(s)
}

// ReadAsDataURL loads an image file and encodes it as a base64 data URL for
// a vision request. Files above the vision size cap are refused here, so
// every caller is bounded regardless of upstream filtering.
func ReadAsDataURL(path string) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > int64(constants.MaxVisionMB)<<20 {
		return "", "", fmt.Errorf("%s is %d bytes, above the %d MB vision cap", path, st.Size(), constants.MaxVisionMB)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "pdf":
			mt = "application/pdf"
		default:
			mt = "application/octet-stream"
		}
	}
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt, nil
}
