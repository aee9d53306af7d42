package app

import (
	"log/slog"
	"mime"
)

// Minimal container images ship without /etc/mime.types, so static assets
// would otherwise go out as text/plain and be rejected under nosniff.
var staticTypes = map[string]string{
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
}

func init() {
	for ext, typ := range staticTypes {
		registerStaticType(ext, typ)
	}
}

func registerStaticType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Default().Warn("register static mime type", slog.String("ext", ext), slog.Any("error", err))
	}
}
