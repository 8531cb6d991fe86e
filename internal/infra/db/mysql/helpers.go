package mysql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"
)

const errDupEntry = 1062

func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// orDefault returns def when the input is empty/whitespace
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// jsonOrNull keeps invalid payloads out of a JSON column
func jsonOrNull(raw []byte) any {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return string(raw)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
