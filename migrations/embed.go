// Package migrations embeds the SQL schema applied by "clinica-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
