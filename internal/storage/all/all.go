// Package all registers every warehouse backend with the storage registry.
package all

import (
	_ "accessetl/internal/storage/mssql"
	_ "accessetl/internal/storage/postgres"
	_ "accessetl/internal/storage/snowflake"
	_ "accessetl/internal/storage/sqlite"
)
