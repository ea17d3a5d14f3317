// Package build runs the blog build pipeline: index posts, render changed
// posts to HTML, write the index artifact, and emit the sitemap and build report.
// All execution paths (CLI build, preview rebuilds, tests) route through Builder.
package build
