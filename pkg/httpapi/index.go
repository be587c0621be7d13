package httpapi

import (
	"fmt"
	"net/http"
)

// contentSecurityPolicy restricts the map page to self-hosted scripts
// and styles plus the tile/CDN origins the frontend actually uses.
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline' https://unpkg.com; " +
	"img-src 'self' data: https://tile.openstreetmap.org https://tile.opentopomap.org; " +
	"connect-src 'self' ws: wss:"

// indexHTML is the minimal map shell; all live data arrives through the
// JSON API and the WebSocket push channel.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MeshForge Maps</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js" defer></script>
<script src="/static/app.js" defer></script>
<style>html,body,#map{height:100%;margin:0}</style>
</head>
<body>
<div id="map"></div>
<noscript>This map requires JavaScript. The API remains available under /api/.</noscript>
</body>
</html>
`

// handleIndex serves the map page at exactly "/"; anything else that
// falls through to the root pattern is an unknown path.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	body := []byte(indexHTML)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
