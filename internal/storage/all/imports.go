// Package all registers every built-in storage backend. Import it for its
// side effects:
//
//	import _ "salesetl/internal/storage/all"
package all

import (
	_ "salesetl/internal/storage/mssql"
	_ "salesetl/internal/storage/mysql"
	_ "salesetl/internal/storage/postgres"
	_ "salesetl/internal/storage/sqlite"
)
