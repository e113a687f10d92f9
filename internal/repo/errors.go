package repo

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate 表示违反唯一索引
var ErrDuplicate = errors.New("duplicate key")

// MySQL 唯一索引冲突错误码
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
