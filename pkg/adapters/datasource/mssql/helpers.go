package mssql

import (
	"strings"

	"github.com/google/uuid"
)

// mapSQLServerType maps SQL Server type names onto the names the PostgreSQL
// adapter reports, so cached column metadata looks alike across datasources.
func mapSQLServerType(sqlServerType string) string {
	switch t := strings.ToUpper(sqlServerType); t {
	case "INT":
		return "INTEGER"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "IMAGE":
		return "BLOB"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	default:
		return t
	}
}

func isStringType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT":
		return true
	default:
		return false
	}
}

func isDecimalType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	default:
		return false
	}
}

// convertValue turns driver values into JSON-friendly ones. go-mssqldb
// returns character and decimal data as []byte and GUIDs in SQL Server's
// mixed-endian byte order.
func convertValue(dbType string, val any) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}

	switch {
	case isStringType(dbType), isDecimalType(dbType):
		return string(b)
	case strings.EqualFold(dbType, "UNIQUEIDENTIFIER") && len(b) == 16:
		var u uuid.UUID
		// First three groups are little-endian on the wire.
		u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
		u[4], u[5] = b[5], b[4]
		u[6], u[7] = b[7], b[6]
		copy(u[8:], b[8:])
		return u.String()
	default:
		return b
	}
}
