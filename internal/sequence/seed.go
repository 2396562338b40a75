package sequence

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// MaxCodeSeed reads the highest "PREFIX-n" code stored in table.column.
// Codes are zero padded, so the lexical maximum is the numeric one until
// the padding width is exceeded.
func MaxCodeSeed(conn *gorm.DB, table, column, prefix string) SeedFunc {
	return func(ctx context.Context) (int64, error) {
		var maxCode sql.NullString
		err := conn.WithContext(ctx).
			Table(table).
			Select(fmt.Sprintf("MAX(%s)", column)).
			Where(fmt.Sprintf("%s LIKE ?", column), prefix+"-%").
			Scan(&maxCode).Error
		if err != nil {
			return 0, err
		}
		if !maxCode.Valid || maxCode.String == "" {
			return 0, nil
		}
		return Parse(prefix, maxCode.String)
	}
}
