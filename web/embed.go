// Package web embeds the built single-page frontend.
package web

import "embed"

// Dist embeds the production build of the frontend.
//
//go:embed all:dist
var Dist embed.FS
