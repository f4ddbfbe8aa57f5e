// Package preview serves the static site locally.
//
// Every response carries permissive CORS headers and Cache-Control: no-cache.
// Requests for paths that do not exist fall back to the entry file so client
// side routing works, except below the static asset prefix where a missing
// file is a plain 404. Live reload and a Prometheus endpoint are optional.
package preview
