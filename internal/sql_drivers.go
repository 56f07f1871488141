package internal

import (
	// Drivers for the sql and riverqueue publishers, selected by name in config.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
