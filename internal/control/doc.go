// ABOUTME: HTTP control API package
// ABOUTME: gin routes that drive the mixer from bots and scripts
// Package control exposes the mixer over HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /streams
//	GET    /streams/:id
//	POST   /streams                 {source, url, title, volume, duration_ms}
//	DELETE /streams/:id
//	POST   /streams/:id/pause
//	POST   /streams/:id/resume
//	POST   /streams/:id/stop
//	POST   /streams/:id/fade-out    {duration_ms}
//	POST   /streams/:id/fade-in     {duration_ms}
//	POST   /streams/:id/volume      {volume}
//	POST   /crossfade               {out, in, duration_ms}
//	GET    /metrics
package control
