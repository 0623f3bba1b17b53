/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package files

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// allowedProofTypes maps accepted proof content types to the extension used on disk.
var allowedProofTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// DetectFileType prefers the file extension and falls back to sniffing the content.
func DetectFileType(data []byte, filename string) string {
	if mimeType := DetectByExtension(filename); mimeType != "" {
		return mimeType
	}
	return DetectByContent(data)
}

// DetectByExtension returns the MIME type registered for the file's extension, without parameters.
func DetectByExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	mimeType := mime.TypeByExtension(ext)
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	return mimeType
}

// DetectByContent sniffs at most the first 512 bytes.
func DetectByContent(data []byte) string {
	mimeType := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	return mimeType
}

// ProofExtension validates a proof artifact and returns the extension to store it under.
// The content is trusted over the client supplied name.
func ProofExtension(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("proof artifact is empty")
	}
	contentType := DetectByContent(data)
	ext, ok := allowedProofTypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("unsupported proof content type %s", contentType)
	}
	return ext, contentType, nil
}
