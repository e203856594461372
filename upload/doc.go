// Package upload validates, normalizes and stores profile pictures.
//
// Avatar accepts jpeg and png input up to 3MB, bounds the longest side,
// re-encodes to JPEG and hands the bytes to a Storage. S3Storage and
// DiskStorage are the two backends.
package upload
