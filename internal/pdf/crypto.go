package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PasswordCredentials contains the passwords for a PDF file.
type PasswordCredentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// PasswordHandler decrypts password-protected PDF files into temp copies.
type PasswordHandler struct {
	defaultCredentials *PasswordCredentials
}

// NewPasswordHandler creates a password handler with optional default
// credentials.
func NewPasswordHandler(creds *PasswordCredentials) *PasswordHandler {
	return &PasswordHandler{defaultCredentials: creds}
}

// IsEncrypted checks if a PDF file is encrypted/password-protected.
func (h *PasswordHandler) IsEncrypted(filename string) (bool, error) {
	if _, err := api.PageCountFile(filename); err != nil {
		if IsPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
	}
	return false, nil
}

// DecryptPDF returns a path to a decrypted copy of filename, or filename
// itself when it is not encrypted. The caller removes the copy with
// CleanupTempFile.
func (h *PasswordHandler) DecryptPDF(filename string, creds *PasswordCredentials) (string, error) {
	encrypted, err := h.IsEncrypted(filename)
	if err != nil {
		return "", err
	}
	if !encrypted {
		return filename, nil
	}

	tempFile, err := os.CreateTemp("", "decrypted-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tempFile.Close()

	if err := api.DecryptFile(filename, tempFile.Name(), h.decryptionConfig(creds)); err != nil {
		_ = os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return tempFile.Name(), nil
}

func (h *PasswordHandler) decryptionConfig(creds *PasswordCredentials) *model.Configuration {
	config := model.NewDefaultConfiguration()
	if creds == nil {
		creds = h.defaultCredentials
	}
	if creds != nil {
		config.UserPW = creds.UserPassword
		config.OwnerPW = creds.OwnerPassword
	}
	return config
}

// CleanupTempFile removes a temporary decrypted file. Other paths are left
// alone.
func (h *PasswordHandler) CleanupTempFile(filename string) error {
	if filename == "" {
		return nil
	}
	base := filepath.Base(filename)
	if strings.HasPrefix(base, "decrypted-") && strings.HasSuffix(base, ".pdf") {
		return os.Remove(filename)
	}
	return nil
}

// IsPasswordError checks if an error is related to password/encryption issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
