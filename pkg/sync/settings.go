// SPDX-License-Identifier: Apache-2.0

package sync

import (
	"context"
	"database/sql"
	"strings"
)

// PGSettings reads server settings directly from Postgres via SHOW.
type PGSettings struct {
	DB interface {
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}
}

// Setting implements settingsQuerier against a live connection.
func (s *PGSettings) Setting(ctx context.Context, name string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, `SHOW `+name).Scan(&value)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unrecognized configuration parameter") {
			return "", errUnrecognizedSetting
		}
		return "", err
	}
	return value, nil
}
