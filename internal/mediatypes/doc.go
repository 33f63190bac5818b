// Package mediatypes defines which files the gallery treats as camera raw
// images and how a raw file is paired with its XMP sidecar.
package mediatypes
