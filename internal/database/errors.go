package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
)

// IsDuplicateEntry reports a unique/primary key violation.
func IsDuplicateEntry(err error) bool {
	return hasNumber(err, errDupEntry)
}

// IsMissingReference reports a foreign key violation on insert or update.
func IsMissingReference(err error) bool {
	return hasNumber(err, errNoReferencedRow)
}

func hasNumber(err error, n uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == n
}
