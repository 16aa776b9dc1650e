// Package loader registers every store driver with the store registry.
package loader

import (
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/json"
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/memory"
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/redis"
	_ "github.com/MahdiBaghbani/marrfa-go/internal/platform/store/sqlite"
)
