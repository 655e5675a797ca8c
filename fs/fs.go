// Package appfs embeds the database migrations and email templates shipped with the binaries.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
