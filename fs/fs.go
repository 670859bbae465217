package appfs

import "embed"

// FS holds the SQL migrations, the e-mail templates and other static assets.
//go:embed assets migrations templates/email/*
var FS embed.FS
