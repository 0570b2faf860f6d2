// Package templates embeds the starter files `logisticsd init` lays out.
package templates

import "embed"

//go:embed logisticsd.yaml env.example
var FS embed.FS
