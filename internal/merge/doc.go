// Package merge joins the downloaded parts of a split PS4 update package
// back into a single installable package.
package merge
