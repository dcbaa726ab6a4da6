// Package platform contains OS/filesystem integration: the default download
// directory, title sanitizing for folder names, and the on-disk layout of
// downloaded update packages.
package platform
