// Package forge is a small GitHub REST client covering the repository contents
// and Pages endpoints the publisher needs.
package forge
