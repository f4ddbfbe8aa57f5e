// Package publish uploads the site to a GitHub repository and serves it with
// GitHub Pages under a custom domain.
//
// A run has three steps, each awaited before the next: upload the manifest
// files, enable Pages, then register the custom domain. "Already exists"
// conflicts count as success. Any other failure stops the run; steps that
// already succeeded are not rolled back.
package publish
