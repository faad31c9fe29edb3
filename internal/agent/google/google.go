// Package google provides Google-API-backed implementations of the
// calendar and gmail agent backends. Credentials come from the same
// service-account environment variables the rest of the deployment uses;
// interactive OAuth token flows are out of scope here.
package google

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// credentialsJSON resolves service account credentials from the
// environment. Accepts inline JSON (GOOGLE_SERVICE_ACCOUNT_JSON), a file
// path (GOOGLE_SERVICE_ACCOUNT_FILE), or the standard
// GOOGLE_APPLICATION_CREDENTIALS path.
func credentialsJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}
