// Package mysql embeds SQL migration files for the control-plane MySQL database.
package mysql

import (
	"embed"
	"io/fs"
)

//go:embed controlplane/*.sql
var controlplaneFS embed.FS

// ControlPlaneFS returns the control-plane migrations rooted at the sql files.
func ControlPlaneFS() fs.FS {
	sub, err := fs.Sub(controlplaneFS, "controlplane")
	if err != nil {
		panic(err)
	}
	return sub
}
