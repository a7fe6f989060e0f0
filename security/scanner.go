package security

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"
)

const ScannerKeyHeader = "X-Scanner-Key"

type ScannerAuth struct {
	hash []byte
}

// NewScannerAuth guards the scan endpoint with a bcrypt hashed key. An empty
// hash leaves the endpoint open.
func NewScannerAuth(hash string) *ScannerAuth {
	return &ScannerAuth{hash: []byte(hash)}
}

func (s *ScannerAuth) Enabled() bool {
	return len(s.hash) > 0
}

func (s *ScannerAuth) Require(e *core.RequestEvent) error {
	if !s.Enabled() {
		return e.Next()
	}

	key := e.Request.Header.Get(ScannerKeyHeader)
	if key == "" || bcrypt.CompareHashAndPassword(s.hash, []byte(key)) != nil {
		return e.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid scanner key",
		})
	}
	return e.Next()
}
